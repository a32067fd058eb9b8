package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"videoinsight/internal/daemon"
	"videoinsight/internal/history"
	"videoinsight/internal/logging"
	"videoinsight/internal/transcription"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var verbose bool
	var noWarmup bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with its HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logHub := logging.NewStreamHub(4096)
			logger, err := ctx.newLogger(verbose, logHub)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				logger.Error("open history store", logging.Error(err))
				return err
			}

			opts := []daemon.Option{daemon.WithStreamHub(logHub)}
			if noWarmup {
				opts = append(opts, daemon.WithoutWarmup())
			}
			backend := transcription.New(cfg, logger)
			d, err := daemon.New(cfg, store, backend, logger, opts...)
			if err != nil {
				_ = store.Close()
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			<-signalCtx.Done()
			logger.Info("videoinsight daemon shutting down")
			backend.Unload()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noWarmup, "no-warmup", false, "Load the transcription backend on first use instead of at startup")
	return cmd
}

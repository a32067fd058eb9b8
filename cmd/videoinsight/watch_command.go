package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"videoinsight/internal/config"
	"videoinsight/internal/task"
	"videoinsight/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		maxConcurrent int
		summarize     bool
		template      string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Process every video dropped into a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if strings.TrimSpace(dir) == "" {
				return errors.New("watch directory is required (argument or watch.dir)")
			}
			dir, err = config.ExpandPath(dir)
			if err != nil {
				return err
			}
			if maxConcurrent <= 0 {
				maxConcurrent = cfg.Watch.MaxConcurrent
			}

			logger, err := ctx.newLogger(verbose, nil)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := newLocalRuntime(signalCtx, cfg, logger, runtimeOptions{summarize: summarize, template: template})
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			printer := newProgressPrinter(out, false)
			handle := func(_ context.Context, path string) error {
				t, err := buildTask(cfg, path, string(task.TypeFile), strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), template)
				if err != nil {
					return err
				}
				result := rt.orchestrator.Process(signalCtx, t, printer.callback(filepath.Base(path)))
				if !result.Success {
					return errors.New(result.Error)
				}
				fmt.Fprintf(out, "%s: %d characters (subtitles: %s)\n", filepath.Base(path), result.TranscriptLength(), yesNo(result.SubtitleUsed))
				return nil
			}

			w, err := watcher.New(dir, handle, logger, watcher.Options{
				MaxConcurrent: maxConcurrent,
				Settle:        time.Duration(cfg.Watch.SettleMillis) * time.Millisecond,
			})
			if err != nil {
				return err
			}
			defer w.Close()

			fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)\n", dir)
			if err := w.Run(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum videos processed at once (defaults to watch.max_concurrent)")
	cmd.Flags().BoolVar(&summarize, "summarize", false, "Summarize and export each transcript")
	cmd.Flags().StringVarP(&template, "template", "t", "", "Summary template id")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

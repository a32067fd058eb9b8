package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"videoinsight/internal/api"
	"videoinsight/internal/deps"
	"videoinsight/internal/preflight"
	"videoinsight/internal/transcription"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, backend and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			base, err := ctx.apiBase()
			if err != nil {
				return err
			}

			status, err := newAPIClient(base).status(cmd.Context())
			if err != nil {
				if !errors.Is(err, errDaemonUnavailable) {
					return err
				}
				// Offline: report what can be checked locally.
				profile := transcription.New(cfg, nil).Profile(cmd.Context())
				status = api.DaemonStatus{
					HistoryDBPath: cfg.HistoryPath(),
					LockFilePath:  cfg.LockPath(),
					Backend: api.FromSnapshot(transcription.Snapshot{
						State:   transcription.StateUnloaded,
						Profile: &profile,
						Model:   cfg.Transcription.Model,
					}),
					Dependencies: preflight.CheckSystemDeps(cfg, profile.Variant),
					Checks:       preflight.RunAll(cmd.Context(), cfg),
				}
			}

			if asJSON {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")
	return cmd
}

func renderStatus(out io.Writer, status api.DaemonStatus) {
	daemonLine := "not running"
	if status.Running {
		daemonLine = fmt.Sprintf("running (pid %d, since %s)", status.PID, status.StartedAt)
	}
	fmt.Fprintf(out, "Daemon:   %s\n", daemonLine)
	if status.Running {
		fmt.Fprintf(out, "Tasks:    %d active, %d observers, %d dropped events\n",
			status.ActiveTasks, status.Observers, status.DroppedEvents)
	}

	backend := status.Backend
	fmt.Fprintf(out, "Backend:  %s (model %s)\n", backend.State, backend.Model)
	if backend.Variant != "" {
		line := fmt.Sprintf("Device:   %s via %s", backend.Device, backend.Variant)
		if backend.Downgraded {
			line += " [downgraded]"
		}
		fmt.Fprintln(out, line)
		if backend.Reason != "" {
			fmt.Fprintf(out, "          %s\n", backend.Reason)
		}
	}
	fmt.Fprintf(out, "History:  %s\n", status.HistoryDBPath)
	fmt.Fprintln(out)

	if len(status.Dependencies) > 0 {
		fmt.Fprintln(out, renderDependencies(status.Dependencies))
	}
	if len(status.Checks) > 0 {
		rows := make([][]string, 0, len(status.Checks))
		for _, check := range status.Checks {
			rows = append(rows, []string{check.Name, yesNo(check.Passed), check.Detail})
		}
		fmt.Fprintln(out, renderTable([]string{"Check", "OK", "Detail"}, rows, nil))
	}
}

func renderDependencies(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		switch {
		case !s.Available && s.Optional:
			state = "optional, missing"
		case !s.Available:
			state = "MISSING"
		}
		rows = append(rows, []string{s.Name, s.Command, state, s.Detail})
	}
	return renderTable([]string{"Dependency", "Command", "State", "Detail"}, rows, nil)
}

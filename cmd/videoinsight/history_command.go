package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"videoinsight/internal/api"
	"videoinsight/internal/history"
	"videoinsight/internal/textutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.HistoryResponse{Runs: api.FromRuns(runs)})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				detail := run.OutputPath
				if run.Error != "" {
					detail = run.Error
				}
				rows = append(rows, []string{
					textutil.Truncate(run.TaskID, 8),
					string(run.Status),
					strconv.Itoa(run.Progress) + "%",
					textutil.Truncate(displaySource(run), 40),
					strconv.Itoa(run.TranscriptLength),
					formatDuration(run.Duration()),
					run.UpdatedAt.Local().Format("2006-01-02 15:04"),
					textutil.Truncate(detail, 48),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Task", "Status", "Progress", "Source", "Chars", "Took", "Updated", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func displaySource(run history.Run) string {
	if run.Title != "" {
		return run.Title
	}
	return run.Source
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

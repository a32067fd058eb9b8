package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"videoinsight/internal/api"
	"videoinsight/internal/logging"
	"videoinsight/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var taskID string
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			base, err := ctx.apiBase()
			if err != nil {
				return err
			}
			client, err := logs.NewStreamClient(base)
			if err != nil {
				return err
			}

			query := logs.StreamQuery{Limit: limit, TaskID: taskID}
			emit := func(evt logging.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) }
			if follow {
				err = client.Follow(cmd.Context(), query, emit)
			} else {
				var resp api.LogStreamResponse
				resp, err = client.Fetch(cmd.Context(), query)
				for _, evt := range resp.Events {
					emit(evt)
				}
			}
			if logs.IsAPIUnavailable(err) {
				return printLogFile(ctx, out, limit)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().StringVar(&taskID, "task", "", "Only show events for this task id")
	cmd.Flags().IntVarP(&limit, "lines", "n", 200, "Number of events to show")
	return cmd
}

// printLogFile falls back to the on-disk log when the daemon is not running.
func printLogFile(ctx *commandContext, out io.Writer, limit int) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.Paths.LogDir, "videoinsight.log")
	lines, err := logs.LastLines(path, limit)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Fprintf(out, "Daemon not running and no log file at %s\n", path)
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

func formatLogEvent(evt logging.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(evt.Level)))
	if evt.Component != "" {
		b.WriteString(" [" + evt.Component + "]")
	}
	if evt.TaskID != "" {
		b.WriteString(" task=" + evt.TaskID)
	}
	b.WriteByte(' ')
	b.WriteString(evt.Message)
	if len(evt.Fields) > 0 {
		keys := make([]string, 0, len(evt.Fields))
		for k := range evt.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(" " + k + "=" + evt.Fields[k])
		}
	}
	return b.String()
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"videoinsight/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var req api.SubmitRequest

	cmd := &cobra.Command{
		Use:   "submit <file|url>",
		Short: "Queue a video on the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.apiBase()
			if err != nil {
				return err
			}
			req.Source = args[0]
			resp, err := newAPIClient(base).submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s accepted (%s)\n", resp.TaskID, resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Task id (generated when empty)")
	cmd.Flags().StringVar(&req.Type, "type", "", "Source type (file or url); inferred when empty")
	cmd.Flags().StringVar(&req.Title, "title", "", "Video title used in exports")
	cmd.Flags().StringVarP(&req.TemplateID, "template", "t", "", "Summary template id")
	return cmd
}

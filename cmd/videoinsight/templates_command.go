package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"videoinsight/internal/api"
	"videoinsight/internal/textutil"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List summary templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries := api.FromTemplates(cfg.Templates)
			if asJSON {
				return writeJSON(cmd, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, tpl := range entries {
				marker := ""
				if tpl.ID == cfg.Summary.TemplateID {
					marker = "*"
				}
				rows = append(rows, []string{tpl.ID + marker, tpl.Name, textutil.Truncate(tpl.Prompt, 60)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Prompt"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print templates as JSON")
	return cmd
}

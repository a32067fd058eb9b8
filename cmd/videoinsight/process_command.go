package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"videoinsight/internal/config"
	"videoinsight/internal/task"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		title     string
		taskType  string
		language  string
		output    string
		summarize bool
		template  string
		verbose   bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "process <file|url>",
		Short: "Extract text from one video in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(verbose, nil)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			t, err := buildTask(cfg, args[0], taskType, title, template)
			if err != nil {
				return err
			}

			rt, err := newLocalRuntime(signalCtx, cfg, logger, runtimeOptions{
				language:  language,
				summarize: summarize,
				template:  template,
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			printer := newProgressPrinter(cmd.ErrOrStderr(), true)
			result := rt.orchestrator.Process(signalCtx, t, printer.callback(""))
			outputPath := ""
			if result.Success {
				outputPath = rt.outputPath(t.ID)
			}

			if asJSON {
				payload := struct {
					task.Result
					OutputPath string `json:"outputPath,omitempty"`
				}{result, outputPath}
				if err := writeJSON(cmd, payload); err != nil {
					return err
				}
			} else if result.Success {
				if err := writeTranscript(cmd, output, result.Transcript); err != nil {
					return err
				}
				if outputPath != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Summary written to %s\n", outputPath)
				}
			}
			if !result.Success {
				return fmt.Errorf("task %s failed: %s", result.TaskID, result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Video title used in exports")
	cmd.Flags().StringVar(&taskType, "type", "", "Source type (file or url); inferred when empty")
	cmd.Flags().StringVar(&language, "language", "", "Spoken language (overrides transcription.language)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the transcript to this file instead of stdout")
	cmd.Flags().BoolVar(&summarize, "summarize", false, "Summarize the transcript and export it to paths.output_dir")
	cmd.Flags().StringVarP(&template, "template", "t", "", "Summary template id")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the task result as JSON")
	return cmd
}

func buildTask(cfg *config.Config, src, typ, title, templateID string) (task.Task, error) {
	src = strings.TrimSpace(src)
	kind := task.Infer(src)
	if strings.TrimSpace(typ) != "" {
		parsed, err := task.ParseType(typ)
		if err != nil {
			return task.Task{}, err
		}
		kind = parsed
	}
	if kind == task.TypeFile {
		expanded, err := config.ExpandPath(src)
		if err != nil {
			return task.Task{}, fmt.Errorf("resolve source path: %w", err)
		}
		src = expanded
	}
	prompt := ""
	if id := strings.TrimSpace(templateID); id != "" {
		tpl, ok := cfg.Template(id)
		if !ok {
			return task.Task{}, fmt.Errorf("unknown template %q", id)
		}
		prompt = tpl.Prompt
	}
	return task.New("", kind, src, title, prompt)
}

func writeTranscript(cmd *cobra.Command, path, transcript string) error {
	if strings.TrimSpace(path) == "" {
		fmt.Fprintln(cmd.OutOrStdout(), transcript)
		return nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(expanded, []byte(transcript+"\n"), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Transcript written to %s\n", expanded)
	return nil
}

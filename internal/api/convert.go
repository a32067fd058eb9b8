package api

import (
	"fmt"
	"strings"
	"time"

	"videoinsight/internal/config"
	"videoinsight/internal/history"
	"videoinsight/internal/task"
	"videoinsight/internal/transcription"
)

// FromRun converts a history row.
func FromRun(run history.Run) HistoryEntry {
	entry := HistoryEntry{
		TaskID:           run.TaskID,
		Type:             string(run.Type),
		Source:           run.Source,
		Title:            run.Title,
		Status:           string(run.Status),
		Progress:         run.Progress,
		Message:          run.Message,
		TranscriptLength: run.TranscriptLength,
		Error:            run.Error,
		OutputPath:       run.OutputPath,
		CreatedAt:        formatTime(run.CreatedAt),
		UpdatedAt:        formatTime(run.UpdatedAt),
	}
	if run.FinishedAt != nil {
		entry.FinishedAt = formatTime(*run.FinishedAt)
		entry.DurationSeconds = int64(run.Duration().Seconds())
	}
	return entry
}

// FromRuns converts a slice of history rows, preserving order.
func FromRuns(runs []history.Run) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromSnapshot converts the transcription service state.
func FromSnapshot(s transcription.Snapshot) BackendStatus {
	status := BackendStatus{
		State:   string(s.State),
		Ready:   s.State == transcription.StateReady,
		Backend: s.Backend,
		Model:   s.Model,
	}
	if s.Profile != nil {
		status.Device = string(s.Profile.Device)
		status.Variant = string(s.Profile.Variant)
		status.Reason = s.Profile.Reason
		status.Downgraded = s.Profile.Downgraded
	}
	return status
}

// FromTemplates converts configured templates.
func FromTemplates(templates []config.Template) []TemplateEntry {
	out := make([]TemplateEntry, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, TemplateEntry{ID: tpl.ID, Name: tpl.Name, Prompt: tpl.Prompt})
	}
	return out
}

// ToTask validates a submission and resolves its template.
func ToTask(req SubmitRequest, cfg *config.Config) (task.Task, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return task.Task{}, fmt.Errorf("source is required")
	}
	typ := task.Infer(source)
	if strings.TrimSpace(req.Type) != "" {
		parsed, err := task.ParseType(req.Type)
		if err != nil {
			return task.Task{}, err
		}
		typ = parsed
	}
	prompt := strings.TrimSpace(req.TemplatePrompt)
	if prompt == "" && strings.TrimSpace(req.TemplateID) != "" {
		if cfg == nil {
			return task.Task{}, fmt.Errorf("unknown template %q", req.TemplateID)
		}
		tpl, ok := cfg.Template(req.TemplateID)
		if !ok {
			return task.Task{}, fmt.Errorf("unknown template %q", req.TemplateID)
		}
		prompt = tpl.Prompt
	}
	return task.New(req.ID, typ, source, req.Title, prompt)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}

package api

import (
	"videoinsight/internal/deps"
	"videoinsight/internal/logging"
	"videoinsight/internal/preflight"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest is the body of POST /api/tasks. Type may be omitted and is
// then inferred from Source. TemplateID selects a configured template when
// TemplatePrompt is empty.
type SubmitRequest struct {
	ID             string `json:"id,omitempty"`
	Type           string `json:"type,omitempty"`
	Source         string `json:"source"`
	Title          string `json:"title,omitempty"`
	TemplatePrompt string `json:"templatePrompt,omitempty"`
	TemplateID     string `json:"templateId,omitempty"`
}

// SubmitResponse acknowledges an accepted task.
type SubmitResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// BackendStatus mirrors the transcription service snapshot.
type BackendStatus struct {
	State      string `json:"state"`
	Ready      bool   `json:"ready"`
	Backend    string `json:"backend,omitempty"`
	Model      string `json:"model"`
	Device     string `json:"device,omitempty"`
	Variant    string `json:"variant,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Downgraded bool   `json:"downgraded,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     string             `json:"startedAt,omitempty"`
	HistoryDBPath string             `json:"historyDbPath"`
	LockFilePath  string             `json:"lockFilePath"`
	ActiveTasks   int                `json:"activeTasks"`
	Observers     int                `json:"observers"`
	DroppedEvents uint64             `json:"droppedEvents"`
	Backend       BackendStatus      `json:"backend"`
	Dependencies  []deps.Status      `json:"dependencies"`
	Checks        []preflight.Result `json:"checks,omitempty"`
}

// HistoryEntry is one run in transport form.
type HistoryEntry struct {
	TaskID           string `json:"taskId"`
	Type             string `json:"type"`
	Source           string `json:"source"`
	Title            string `json:"title,omitempty"`
	Status           string `json:"status"`
	Progress         int    `json:"progress"`
	Message          string `json:"message,omitempty"`
	TranscriptLength int    `json:"transcriptLength"`
	Error            string `json:"error,omitempty"`
	OutputPath       string `json:"outputPath,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
	FinishedAt       string `json:"finishedAt,omitempty"`
	DurationSeconds  int64  `json:"durationSeconds,omitempty"`
}

// HistoryResponse wraps a list of runs.
type HistoryResponse struct {
	Runs []HistoryEntry `json:"runs"`
}

// TemplateEntry describes a configured summary template.
type TemplateEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// LogStreamResponse carries a batch of log events and the cursor for the
// next request.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// ErrorResponse is returned for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

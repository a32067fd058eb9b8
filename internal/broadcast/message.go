package broadcast

import "encoding/json"

// Type discriminates event envelopes on the wire.
type Type string

const (
	TypeProgress        Type = "progress"
	TypeTaskLog         Type = "task_log"
	TypeTaskUpdate      Type = "task_update"
	TypeTranscriptReady Type = "transcript_ready"
	TypePing            Type = "ping"
	TypePong            Type = "pong"
	TypeStatus          Type = "status"
	TypeError           Type = "error"
)

// Message is the JSON envelope delivered to observers. Fields not relevant to
// a given Type stay empty and are omitted when encoded.
type Message struct {
	Type             Type   `json:"type"`
	TaskID           string `json:"taskId,omitempty"`
	Status           string `json:"status,omitempty"`
	Progress         *int   `json:"progress,omitempty"`
	Message          string `json:"message,omitempty"`
	Level            string `json:"level,omitempty"`
	OutputPath       string `json:"outputPath,omitempty"`
	Transcript       string `json:"transcript,omitempty"`
	TranscriptLength int    `json:"transcriptLength,omitempty"`
	TemplatePrompt   string `json:"templatePrompt,omitempty"`
	Source           string `json:"source,omitempty"`
	Title            string `json:"title,omitempty"`
	TaskType         string `json:"taskType,omitempty"`
	SubtitleUsed     bool   `json:"subtitleUsed,omitempty"`
	BackendReady     *bool  `json:"backendReady,omitempty"`
}

// ProgressMessage reports a task status and percent.
func ProgressMessage(taskID, status string, progress int, message string) Message {
	return Message{Type: TypeProgress, TaskID: taskID, Status: status, Progress: &progress, Message: message}
}

// TaskLogMessage carries one task log line.
func TaskLogMessage(taskID, level, message string) Message {
	return Message{Type: TypeTaskLog, TaskID: taskID, Level: level, Message: message}
}

// TaskUpdateMessage reports a task state change, optionally with an output path.
func TaskUpdateMessage(taskID, status string, progress int, message, outputPath string) Message {
	return Message{Type: TypeTaskUpdate, TaskID: taskID, Status: status, Progress: &progress, Message: message, OutputPath: outputPath}
}

// PongMessage answers a ping.
func PongMessage() Message {
	return Message{Type: TypePong}
}

// StatusMessage reports whether the transcription backend is loaded.
func StatusMessage(backendReady bool) Message {
	return Message{Type: TypeStatus, BackendReady: &backendReady}
}

// ErrorMessage reports a protocol-level problem to one observer.
func ErrorMessage(message string) Message {
	return Message{Type: TypeError, Message: message}
}

// Encode renders the message as JSON.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ProgressValue returns the progress percent or -1 when absent.
func (m Message) ProgressValue() int {
	if m.Progress == nil {
		return -1
	}
	return *m.Progress
}

// critical reports whether losing m would leave observers with a wrong final
// state: task updates, transcript hand-offs and terminal progress.
func (m Message) critical() bool {
	switch m.Type {
	case TypeTaskUpdate, TypeTranscriptReady:
		return true
	case TypeProgress:
		return m.Status == "completed" || m.Status == "failed"
	}
	return false
}

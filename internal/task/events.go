package task

// Level is the severity of a task log line.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ProgressEvent reports a task's status and percent complete.
type ProgressEvent struct {
	TaskID   string
	Status   Status
	Progress int
	Message  string
}

// LogEvent is a human-readable line attached to a task.
type LogEvent struct {
	TaskID  string
	Level   Level
	Message string
}

// Result is the outcome of processing one task.
type Result struct {
	Success      bool   `json:"success"`
	TaskID       string `json:"taskId"`
	Type         Type   `json:"taskType"`
	Source       string `json:"source"`
	Title        string `json:"title,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	SubtitleUsed bool   `json:"subtitleUsed"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"errorKind,omitempty"`
}

// TranscriptLength returns the transcript length in characters.
func (r Result) TranscriptLength() int {
	return len([]rune(r.Transcript))
}

package task

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusPending:     {StatusDownloading, StatusProcessing, StatusFailed},
	StatusDownloading: {StatusProcessing, StatusFailed},
	StatusProcessing:  {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from one status to another respects
// the forward-only lifecycle. Staying in the same non-terminal status is
// allowed so progress updates can repeat it.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

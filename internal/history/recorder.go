package history

import (
	"context"
	"log/slog"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/logging"
	"videoinsight/internal/task"
)

// Recorder is a hub observer that writes events into the store.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder wraps store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logging.NewComponentLogger(logger, "history")}
}

// ID implements broadcast.Observer.
func (r *Recorder) ID() string { return "history-recorder" }

// Deliver implements broadcast.Observer. Storage errors are logged and
// swallowed so the recorder stays subscribed.
func (r *Recorder) Deliver(ctx context.Context, msg broadcast.Message) error {
	if msg.TaskID == "" {
		return nil
	}
	var err error
	switch msg.Type {
	case broadcast.TypeProgress:
		err = r.store.RecordProgress(ctx, msg.TaskID, task.Status(msg.Status), max(msg.ProgressValue(), 0), msg.Message)
	case broadcast.TypeTranscriptReady:
		err = r.store.RecordTranscript(ctx, msg.TaskID, task.Type(msg.TaskType), msg.Source, msg.Title, msg.TranscriptLength)
	case broadcast.TypeTaskUpdate:
		switch {
		case msg.OutputPath != "":
			err = r.store.SetOutput(ctx, msg.TaskID, msg.OutputPath)
		case task.Status(msg.Status) == task.StatusFailed:
			err = r.store.RecordError(ctx, msg.TaskID, msg.Message)
		}
	default:
		return nil
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "history write failed", "history_write_failed",
			logging.String(logging.FieldTaskID, msg.TaskID),
			logging.String("message_type", string(msg.Type)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from history listing"),
		)
	}
	return nil
}

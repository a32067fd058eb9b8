package pipeline

import (
	"io"
	"log/slog"
	"sync"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/logging"
	"videoinsight/internal/task"
)

// run carries the per-task event state: the monotonic progress tracker, the
// task logger and the caller callback.
type run struct {
	task     task.Task
	events   Publisher
	callback ProgressCallback
	logger   *slog.Logger
	closer   io.Closer

	mu       sync.Mutex
	status   task.Status
	progress int
	done     bool
}

// report emits a progress event. Values below the last reported progress are
// raised to it; events after the run finished are dropped.
func (r *run) report(status task.Status, progress int, message string) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	if progress < r.progress {
		progress = r.progress
	}
	if progress > 100 {
		progress = 100
	}
	if !task.CanTransition(r.status, status) {
		r.logger.Debug("unexpected status transition",
			logging.String("from", string(r.status)),
			logging.String("to", string(status)),
		)
	}
	r.status = status
	r.progress = progress
	if status.Terminal() {
		r.done = true
	}
	r.mu.Unlock()

	r.events.Publish(broadcast.ProgressMessage(r.task.ID, string(status), progress, message))
	if r.callback != nil {
		r.callback(status, progress, message)
	}
}

// current returns the last reported progress.
func (r *run) current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// log emits a task_log event and mirrors it to slog at the same level.
func (r *run) log(level task.Level, message string, attrs ...logging.Attr) {
	switch level {
	case task.LevelError:
		r.logger.Error(message, logging.Args(attrs...)...)
	case task.LevelWarning:
		r.logger.Warn(message, logging.Args(attrs...)...)
	default:
		r.logger.Info(message, logging.Args(attrs...)...)
	}
	r.events.Publish(broadcast.TaskLogMessage(r.task.ID, string(level), message))
}

func (r *run) close() {
	if r.closer != nil {
		_ = r.closer.Close()
	}
}

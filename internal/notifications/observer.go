package notifications

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/logging"
	"videoinsight/internal/task"
)

const sendTimeout = 30 * time.Second

// Notifier is a hub observer that forwards task outcomes to a Service.
type Notifier struct {
	svc    Service
	logger *slog.Logger

	mu     sync.Mutex
	titles map[string]string
	wg     sync.WaitGroup
}

// NewNotifier wraps svc.
func NewNotifier(svc Service, logger *slog.Logger) *Notifier {
	return &Notifier{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "notifications"),
		titles: make(map[string]string),
	}
}

// ID implements broadcast.Observer.
func (n *Notifier) ID() string { return "notifications" }

// Deliver implements broadcast.Observer. Send failures are logged and never
// returned, so the notifier stays subscribed.
func (n *Notifier) Deliver(_ context.Context, msg broadcast.Message) error {
	switch msg.Type {
	case broadcast.TypeTranscriptReady:
		title := msg.Title
		if title == "" {
			title = filepath.Base(msg.Source)
		}
		n.remember(msg.TaskID, title)
		n.send(msg.TaskID, func(ctx context.Context) error {
			return n.svc.NotifyTranscriptReady(ctx, title, msg.TranscriptLength, msg.SubtitleUsed)
		})
	case broadcast.TypeTaskUpdate:
		title := n.title(msg.TaskID)
		switch {
		case msg.Status == string(task.StatusFailed):
			n.send(msg.TaskID, func(ctx context.Context) error {
				return n.svc.NotifyTaskFailed(ctx, title, msg.Message)
			})
			n.forget(msg.TaskID)
		case msg.OutputPath != "":
			n.send(msg.TaskID, func(ctx context.Context) error {
				return n.svc.NotifySummaryExported(ctx, title, msg.OutputPath)
			})
			n.forget(msg.TaskID)
		}
	}
	return nil
}

// Wait blocks until in-flight sends finish. Deliveries must have stopped
// before Wait is called.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(taskID string, fn func(context.Context) error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logging.WarnWithContext(n.logger, "notification failed", "notification_failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "task result is unaffected"),
			)
		}
	}()
}

func (n *Notifier) remember(taskID, title string) {
	n.mu.Lock()
	n.titles[taskID] = title
	n.mu.Unlock()
}

func (n *Notifier) title(taskID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if title, ok := n.titles[taskID]; ok {
		return title
	}
	return taskID
}

func (n *Notifier) forget(taskID string) {
	n.mu.Lock()
	delete(n.titles, taskID)
	n.mu.Unlock()
}

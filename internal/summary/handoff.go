package summary

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/logging"
	"videoinsight/internal/services"
	"videoinsight/internal/task"
)

const handoffTimeout = 10 * time.Minute

// Publisher receives the follow-up events.
type Publisher interface {
	Publish(msg broadcast.Message) bool
}

// Notes summarizes transcripts.
type Notes interface {
	Summarize(ctx context.Context, templatePrompt, transcript string) (string, error)
}

// Writer persists a finished summary.
type Writer interface {
	Export(summary string, meta Metadata) (string, error)
}

// Handoff is a hub observer that summarizes and exports every transcript it
// sees. Work runs in the background so delivery returns immediately.
type Handoff struct {
	notes         Notes
	writer        Writer
	events        Publisher
	defaultPrompt string
	logger        *slog.Logger
	wg            sync.WaitGroup
}

// NewHandoff wires the pieces. defaultPrompt is used for tasks submitted
// without a template prompt.
func NewHandoff(notes Notes, writer Writer, events Publisher, defaultPrompt string, logger *slog.Logger) *Handoff {
	return &Handoff{
		notes:         notes,
		writer:        writer,
		events:        events,
		defaultPrompt: strings.TrimSpace(defaultPrompt),
		logger:        logging.NewComponentLogger(logger, "summary-handoff"),
	}
}

// ID implements broadcast.Observer.
func (h *Handoff) ID() string { return "summary-handoff" }

// Deliver implements broadcast.Observer.
func (h *Handoff) Deliver(_ context.Context, msg broadcast.Message) error {
	if msg.Type != broadcast.TypeTranscriptReady {
		return nil
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.handle(msg)
	}()
	return nil
}

// Wait blocks until background work started so far has finished. Deliveries
// must have stopped before Wait is called; the daemon stops the hub first.
func (h *Handoff) Wait() {
	h.wg.Wait()
}

func (h *Handoff) handle(msg broadcast.Message) {
	ctx, cancel := context.WithTimeout(services.WithTaskID(context.Background(), msg.TaskID), handoffTimeout)
	defer cancel()
	logger := logging.WithContext(ctx, h.logger)

	prompt := strings.TrimSpace(msg.TemplatePrompt)
	if prompt == "" {
		prompt = h.defaultPrompt
	}
	notes, err := h.notes.Summarize(ctx, prompt, msg.Transcript)
	if err != nil {
		h.fail(logger, msg.TaskID, "summary failed: "+err.Error(), err)
		return
	}
	path, err := h.writer.Export(notes, Metadata{
		Title:    msg.Title,
		Source:   msg.Source,
		Platform: platformOf(msg.TaskType, msg.Source),
	})
	if err != nil {
		h.fail(logger, msg.TaskID, "export failed: "+err.Error(), err)
		return
	}
	logger.Info("summary exported",
		logging.String(logging.FieldEventType, "summary_exported"),
		logging.String("output_path", path),
	)
	h.events.Publish(broadcast.TaskLogMessage(msg.TaskID, string(task.LevelInfo), "Summary saved to "+path))
	h.events.Publish(broadcast.TaskUpdateMessage(msg.TaskID, string(task.StatusCompleted), 100, "summary exported", path))
}

func (h *Handoff) fail(logger *slog.Logger, taskID, message string, err error) {
	logging.WarnWithContext(logger, "summary handoff failed", "summary_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.String(logging.FieldImpact, "transcript kept, no notes written"),
	)
	h.events.Publish(broadcast.TaskLogMessage(taskID, string(task.LevelError), message))
	h.events.Publish(broadcast.TaskUpdateMessage(taskID, string(task.StatusFailed), 100, message, ""))
}

func platformOf(taskType, src string) string {
	if task.Type(taskType) != task.TypeURL {
		return "本地文件"
	}
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "xiaohongshu") || strings.Contains(host, "xhslink"):
		return "小红书"
	case strings.Contains(host, "bilibili") || strings.Contains(host, "b23.tv"):
		return "哔哩哔哩"
	case strings.Contains(host, "douyin"):
		return "抖音"
	}
	return strings.TrimPrefix(host, "www.")
}

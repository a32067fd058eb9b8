package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"videoinsight/internal/config"
)

const userAgent = "VideoInsight/1.0"

// Service is the notification surface used by the observer and the CLI.
type Service interface {
	NotifyTranscriptReady(ctx context.Context, title string, characters int, subtitleUsed bool) error
	NotifySummaryExported(ctx context.Context, title, outputPath string) error
	NotifyTaskFailed(ctx context.Context, title, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually sends anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyTranscriptReady(ctx context.Context, title string, characters int, subtitleUsed bool) error {
	method := "transcribed"
	if subtitleUsed {
		method = "from subtitles"
	}
	data := payload{
		title:   "Video Insight - Transcript Ready",
		message: fmt.Sprintf("📝 %s: %d characters (%s)", displayTitle(title), characters, method),
		tags:    []string{"videoinsight", "transcript", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifySummaryExported(ctx context.Context, title, outputPath string) error {
	data := payload{
		title:   "Video Insight - Summary Exported",
		message: fmt.Sprintf("📄 %s\n%s", displayTitle(title), strings.TrimSpace(outputPath)),
		tags:    []string{"videoinsight", "summary", "exported"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, title, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Video Insight - Failed",
		message:  fmt.Sprintf("❌ %s: %s", displayTitle(title), reason),
		tags:     []string{"videoinsight", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Video Insight - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"videoinsight", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func displayTitle(title string) string {
	if title = strings.TrimSpace(title); title != "" {
		return title
	}
	return "Untitled video"
}

type noopService struct{}

func (noopService) NotifyTranscriptReady(context.Context, string, int, bool) error { return nil }
func (noopService) NotifySummaryExported(context.Context, string, string) error   { return nil }
func (noopService) NotifyTaskFailed(context.Context, string, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }

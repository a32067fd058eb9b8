package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"videoinsight/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
	defaultMaxTokens      = 4096
)

// Request is one system/user prompt pair.
type Request struct {
	System string
	User   string
}

// Completer sends a prompt pair to a chat model and returns the reply text.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Config captures the runtime settings required to talk to a provider.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
}

// ConfigFromSummary maps the summary section of the application config.
func ConfigFromSummary(s config.Summary) Config {
	return Config{
		Provider:       s.Provider,
		APIKey:         s.APIKey,
		BaseURL:        s.BaseURL,
		Model:          s.Model,
		MaxTokens:      s.MaxTokens,
		TimeoutSeconds: s.TimeoutSeconds,
	}
}

// Option customizes a client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	retry      retryPolicy
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(o *options) {
		o.retry.maxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(o *options) {
		o.retry.baseDelay = baseDelay
		o.retry.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(o *options) {
		o.retry.sleeper = sleeper
	}
}

func buildOptions(cfg Config, opts []Option) options {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	o := options{
		httpClient: &http.Client{Timeout: timeout},
		retry: retryPolicy{
			maxAttempts: defaultRetryAttempts,
			baseDelay:   defaultRetryBaseDelay,
			maxDelay:    defaultRetryMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func normalize(cfg Config) Config {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return cfg
}

// NewFromConfig builds the Completer for cfg.Provider.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (Completer, error) {
	cfg = normalize(cfg)
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key required")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm: model required")
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(cfg, opts...), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

func validateRequest(op string, req Request) (Request, error) {
	req.System = strings.TrimSpace(req.System)
	req.User = strings.TrimSpace(req.User)
	if req.User == "" {
		return req, fmt.Errorf("%s: user prompt required", op)
	}
	return req, nil
}

type emptyContentError struct {
	Op           string
	FinishReason string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q)", e.Op, e.FinishReason)
}

// CleanReply trims the reply and strips a surrounding Markdown code fence.
func CleanReply(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		lang := strings.TrimSpace(body[:nl])
		if lang == "" || strings.EqualFold(lang, "markdown") || strings.EqualFold(lang, "md") {
			body = body[nl+1:]
		}
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

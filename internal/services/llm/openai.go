package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	cfg    Config
	client *openai.Client
	retry  retryPolicy
}

// NewOpenAIClient constructs a client. An empty BaseURL targets api.openai.com.
func NewOpenAIClient(cfg Config, opts ...Option) *OpenAIClient {
	cfg = normalize(cfg)
	o := buildOptions(cfg, opts)
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = o.httpClient
	return &OpenAIClient{cfg: cfg, client: openai.NewClientWithConfig(clientCfg), retry: o.retry}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return ProviderOpenAI }

// Complete issues a chat completion and returns the first non-empty choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	const op = "openai complete"
	req, err := validateRequest(op, req)
	if err != nil {
		return "", err
	}
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})
	payload := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: 0.3,
	}
	return c.retry.do(ctx, op, openAIStatus, func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, payload)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		var finish string
		for _, choice := range resp.Choices {
			if finish == "" {
				finish = string(choice.FinishReason)
			}
			if content := strings.TrimSpace(choice.Message.Content); content != "" {
				return content, nil
			}
		}
		return "", &emptyContentError{Op: op, FinishReason: finish}
	})
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	cfg    Config
	client *genai.Client
	retry  retryPolicy
}

// NewGeminiClient constructs a Gemini client. BaseURL overrides the API host.
func NewGeminiClient(ctx context.Context, cfg Config, opts ...Option) (*GeminiClient, error) {
	cfg = normalize(cfg)
	o := buildOptions(cfg, opts)
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL + "/"}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{cfg: cfg, client: client, retry: o.retry}, nil
}

// Name returns the provider name.
func (c *GeminiClient) Name() string { return ProviderGemini }

// Complete generates content and concatenates the text parts of the first
// candidate that has any.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	const op = "gemini complete"
	req, err := validateRequest(op, req)
	if err != nil {
		return "", err
	}
	genCfg := &genai.GenerateContentConfig{MaxOutputTokens: int32(c.cfg.MaxTokens)}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return c.retry.do(ctx, op, nil, func() (string, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(req.User), genCfg)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		var finish string
		for _, candidate := range resp.Candidates {
			if candidate == nil {
				continue
			}
			if finish == "" {
				finish = string(candidate.FinishReason)
			}
			if candidate.Content == nil {
				continue
			}
			var b strings.Builder
			for _, part := range candidate.Content.Parts {
				if part != nil {
					b.WriteString(part.Text)
				}
			}
			if text := strings.TrimSpace(b.String()); text != "" {
				return text, nil
			}
		}
		return "", &emptyContentError{Op: op, FinishReason: finish}
	})
}

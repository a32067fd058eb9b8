package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "demo-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{
					"finishReason": "STOP",
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": "第一部分"}, map[string]any{"text": "第二部分"}},
					},
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewGeminiClient(context.Background(), Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	got, err := client.Complete(context.Background(), Request{System: "sys", User: "transcript"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "第一部分第二部分" {
		t.Fatalf("unexpected content %q", got)
	}
}

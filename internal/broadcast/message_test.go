package broadcast

import (
	"encoding/json"
	"testing"
)

func TestProgressMessageEncodesZeroProgress(t *testing.T) {
	data, err := ProgressMessage("t1", "processing", 0, "start").Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["type"] != "progress" || payload["taskId"] != "t1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if v, ok := payload["progress"]; !ok || v.(float64) != 0 {
		t.Fatalf("expected progress 0 to be present, got %v", payload)
	}
}

func TestPongOmitsTaskFields(t *testing.T) {
	data, err := PongMessage().Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if string(data) != `{"type":"pong"}` {
		t.Fatalf("unexpected pong encoding %s", data)
	}
}

func TestStatusMessageCarriesFalse(t *testing.T) {
	data, err := StatusMessage(false).Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if string(data) != `{"type":"status","backendReady":false}` {
		t.Fatalf("unexpected status encoding %s", data)
	}
}

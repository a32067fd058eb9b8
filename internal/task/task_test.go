package task

import "testing"

func TestNewAssignsID(t *testing.T) {
	tk, err := New("", TypeFile, " /tmp/a.mp4 ", "", "")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if tk.ID == "" {
		t.Fatal("expected generated id")
	}
	if tk.Source != "/tmp/a.mp4" {
		t.Fatalf("source = %q", tk.Source)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("x", TypeFile, "  ", "", ""); err == nil {
		t.Fatal("expected error for empty source")
	}
	if _, err := New("x", Type("ftp"), "/a", "", ""); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestInferAndParseType(t *testing.T) {
	if Infer("https://example.com/v.mp4") != TypeURL {
		t.Fatal("expected url type")
	}
	if Infer("/videos/v.mp4") != TypeFile {
		t.Fatal("expected file type")
	}
	if typ, err := ParseType(" URL "); err != nil || typ != TypeURL {
		t.Fatalf("ParseType = %v, %v", typ, err)
	}
	if _, err := ParseType("disc"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusDownloading, true},
		{StatusPending, StatusProcessing, true},
		{StatusDownloading, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusDownloading, StatusFailed, true},
		{StatusProcessing, StatusProcessing, true},
		{StatusProcessing, StatusDownloading, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusFailed, false},
		{StatusPending, StatusCompleted, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTranscriptLengthCountsRunes(t *testing.T) {
	r := Result{Transcript: "字幕A 字幕B"}
	if got := r.TranscriptLength(); got != 7 {
		t.Fatalf("TranscriptLength = %d, want 7", got)
	}
}

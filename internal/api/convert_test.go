package api

import (
	"testing"
	"time"

	"videoinsight/internal/config"
	"videoinsight/internal/history"
	"videoinsight/internal/task"
	"videoinsight/internal/transcription"
)

func TestFromRun(t *testing.T) {
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	finished := created.Add(90 * time.Second)
	entry := FromRun(history.Run{
		TaskID:     "t1",
		Type:       task.TypeFile,
		Status:     task.StatusCompleted,
		Progress:   100,
		CreatedAt:  created,
		UpdatedAt:  finished,
		FinishedAt: &finished,
	})
	if entry.CreatedAt != "2026-02-03T04:05:06.000Z" {
		t.Fatalf("createdAt = %q", entry.CreatedAt)
	}
	if entry.DurationSeconds != 90 || entry.Status != "completed" || entry.Type != "file" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestFromRunInFlight(t *testing.T) {
	entry := FromRun(history.Run{TaskID: "t2", Status: task.StatusProcessing})
	if entry.FinishedAt != "" || entry.DurationSeconds != 0 || entry.CreatedAt != "" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestFromSnapshot(t *testing.T) {
	status := FromSnapshot(transcription.Snapshot{
		State:   transcription.StateReady,
		Backend: "whispercpp",
		Model:   "base",
		Profile: &transcription.DeviceProfile{Device: transcription.DeviceCPU, Variant: transcription.VariantWhisperCPP, Downgraded: true},
	})
	if !status.Ready || status.Device != "cpu" || status.Variant != "whispercpp" || !status.Downgraded {
		t.Fatalf("unexpected status %+v", status)
	}
	if FromSnapshot(transcription.Snapshot{State: transcription.StateUnloaded}).Ready {
		t.Fatal("unloaded backend reported ready")
	}
}

func TestToTask(t *testing.T) {
	cfg := config.Default()
	cfg.Templates = config.DefaultTemplates()

	tk, err := ToTask(SubmitRequest{Source: "https://example.com/v.mp4", TemplateID: "summary"}, &cfg)
	if err != nil {
		t.Fatalf("ToTask: %v", err)
	}
	if tk.Type != task.TypeURL || tk.TemplatePrompt == "" || tk.ID == "" {
		t.Fatalf("unexpected task %+v", tk)
	}

	tk, err = ToTask(SubmitRequest{Source: "/videos/a.mp4", TemplatePrompt: "自定义", TemplateID: "summary"}, &cfg)
	if err != nil || tk.Type != task.TypeFile || tk.TemplatePrompt != "自定义" {
		t.Fatalf("explicit prompt should win: %+v %v", tk, err)
	}

	cases := []SubmitRequest{
		{Source: "  "},
		{Source: "/a.mp4", Type: "ftp"},
		{Source: "/a.mp4", TemplateID: "missing"},
	}
	for _, req := range cases {
		if _, err := ToTask(req, &cfg); err == nil {
			t.Fatalf("expected error for %+v", req)
		}
	}
}

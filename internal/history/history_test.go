package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/logging"
	"videoinsight/internal/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecorderFoldsEvents(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, logging.NewNop())
	ctx := context.Background()

	tk, _ := task.New("t1", task.TypeURL, "https://example.com/v.mp4", "", "")
	if err := store.Begin(ctx, tk); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	events := []broadcast.Message{
		broadcast.ProgressMessage("t1", "processing", 5, "task started"),
		broadcast.ProgressMessage("t1", "downloading", 12, "downloading"),
		broadcast.ProgressMessage("t1", "processing", 60, "text extracted"),
		{Type: broadcast.TypeTranscriptReady, TaskID: "t1", Title: "clip", TranscriptLength: 42, TaskType: "url"},
		broadcast.ProgressMessage("t1", "completed", 100, "transcription completed"),
		broadcast.TaskUpdateMessage("t1", "completed", 100, "summary exported", "/out/clip.md"),
		broadcast.ProgressMessage("t1", "processing", 50, "late event"),
	}
	for _, msg := range events {
		if err := rec.Deliver(ctx, msg); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}

	run, err := store.Get(ctx, "t1")
	if err != nil || run == nil {
		t.Fatalf("Get: %v %v", run, err)
	}
	if run.Status != task.StatusCompleted || run.Progress != 100 {
		t.Fatalf("unexpected status %s/%d", run.Status, run.Progress)
	}
	if run.Title != "clip" || run.Source != "https://example.com/v.mp4" || run.Type != task.TypeURL {
		t.Fatalf("unexpected descriptive columns %+v", run)
	}
	if run.TranscriptLength != 42 || run.OutputPath != "/out/clip.md" {
		t.Fatalf("unexpected transcript/output %+v", run)
	}
	if run.FinishedAt == nil || run.Message != "transcription completed" {
		t.Fatalf("terminal state not kept: %+v", run)
	}
}

func TestRecorderKeepsFailure(t *testing.T) {
	store := openTestStore(t)
	rec := NewRecorder(store, logging.NewNop())
	ctx := context.Background()

	_ = rec.Deliver(ctx, broadcast.ProgressMessage("t2", "processing", 22, "checking"))
	_ = rec.Deliver(ctx, broadcast.ProgressMessage("t2", "failed", 22, "processing failed: network down"))

	run, err := store.Get(ctx, "t2")
	if err != nil || run == nil {
		t.Fatalf("Get: %v %v", run, err)
	}
	if run.Status != task.StatusFailed || run.Error != "processing failed: network down" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.RecordProgress(ctx, id, task.StatusProcessing, 5, ""); err != nil {
			t.Fatalf("RecordProgress: %v", err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].TaskID != "c" || runs[1].TaskID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)
	run, err := store.Get(context.Background(), "nope")
	if err != nil || run != nil {
		t.Fatalf("expected nil run, got %+v %v", run, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()
	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

package whispercpp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"videoinsight/internal/services/asr"
	"videoinsight/internal/services/whispercpp"
)

type stubExecutor struct {
	lines  []string
	err    error
	binary string
	args   []string
}

func (s *stubExecutor) Run(_ context.Context, binary string, args []string, _ []string, onLine func(string)) error {
	s.binary = binary
	s.args = append([]string(nil), args...)
	for _, line := range s.lines {
		onLine(line)
	}
	return s.err
}

func found(name string) (string, error) { return "/usr/local/bin/" + name, nil }

func TestModelFileIncludesQuantization(t *testing.T) {
	svc := whispercpp.NewService(whispercpp.Config{Model: "small", Quantization: "q5_1", ModelCacheDir: "/models"})
	if got := svc.ModelFile(); got != "ggml-small-q5_1.bin" {
		t.Fatalf("ModelFile = %q", got)
	}
	if got := svc.ModelURL(); got != whispercpp.DefaultModelBaseURL+"/ggml-small-q5_1.bin" {
		t.Fatalf("ModelURL = %q", got)
	}
	plain := whispercpp.NewService(whispercpp.Config{})
	if got := plain.ModelFile(); got != "ggml-base.bin" {
		t.Fatalf("ModelFile without quantization = %q", got)
	}
	if plain.Threads() <= 0 {
		t.Fatal("expected default thread count")
	}
}

func TestLoadDownloadsMissingModelOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/ggml-base-q5_1.bin") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ggml-weights"))
	}))
	defer server.Close()

	cache := t.TempDir()
	svc := whispercpp.NewService(whispercpp.Config{
		Quantization:  "q5_1",
		ModelCacheDir: cache,
		ModelBaseURL:  server.URL,
	}, whispercpp.WithLookPath(found), whispercpp.WithHTTPClient(server.Client()))

	for i := 0; i < 2; i++ {
		if err := svc.Load(context.Background()); err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one download, got %d", hits.Load())
	}
	data, err := os.ReadFile(filepath.Join(cache, "ggml-base-q5_1.bin"))
	if err != nil || string(data) != "ggml-weights" {
		t.Fatalf("model not installed: %v %q", err, data)
	}
}

func TestLoadFailsOnDownloadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	cache := t.TempDir()
	svc := whispercpp.NewService(whispercpp.Config{ModelCacheDir: cache, ModelBaseURL: server.URL},
		whispercpp.WithLookPath(found), whispercpp.WithHTTPClient(server.Client()))
	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected download failure")
	}
	entries, _ := os.ReadDir(cache)
	if len(entries) != 0 {
		t.Fatalf("expected no partial files, found %d", len(entries))
	}
}

func TestLoadRequiresBinary(t *testing.T) {
	svc := whispercpp.NewService(whispercpp.Config{ModelCacheDir: t.TempDir()}, whispercpp.WithLookPath(func(string) (string, error) {
		return "", errors.New("not found")
	}))
	if err := svc.Load(context.Background()); err == nil {
		t.Fatal("expected error when binary is missing")
	}
}

func TestTranscribeParsesSegments(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		"whisper_init_from_file: loading model",
		"[00:00:00.000 --> 00:00:30.000]   大家好",
		"[00:00:30.000 --> 00:01:00.000]   欢迎收看",
	}}
	svc := whispercpp.NewService(whispercpp.Config{Threads: 4, ModelCacheDir: "/models"}, whispercpp.WithExecutor(exec))

	var ends []time.Duration
	text, err := svc.Transcribe(context.Background(), "/tmp/a.wav", "chi", func(seg asr.Segment) {
		ends = append(ends, seg.End)
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "大家好 欢迎收看" {
		t.Fatalf("unexpected text %q", text)
	}
	if len(ends) != 2 || ends[1] != time.Minute {
		t.Fatalf("unexpected ends %v", ends)
	}
	want := []string{"-m", "/models/ggml-base.bin", "-f", "/tmp/a.wav", "-t", "4", "-l", "zh", "-np"}
	if !slices.Equal(exec.args, want) {
		t.Fatalf("args = %v, want %v", exec.args, want)
	}
}

func TestTranscribeAutoLanguage(t *testing.T) {
	exec := &stubExecutor{}
	svc := whispercpp.NewService(whispercpp.Config{}, whispercpp.WithExecutor(exec))
	if _, err := svc.Transcribe(context.Background(), "/tmp/a.wav", "auto", nil); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	idx := slices.Index(exec.args, "-l")
	if idx < 0 || exec.args[idx+1] != "auto" {
		t.Fatalf("expected -l auto in %v", exec.args)
	}
}

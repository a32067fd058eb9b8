package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"videoinsight/internal/api"
	"videoinsight/internal/config"
	"videoinsight/internal/history"
	"videoinsight/internal/logging"
	"videoinsight/internal/task"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
temp_dir = %q
output_dir = %q
log_dir = %q
data_dir = %q
model_cache_dir = %q
api_bind = "127.0.0.1:1"
`,
		filepath.Join(base, "tmp"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "data"),
		filepath.Join(base, "models"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigShowRendersPaths(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "api_bind")
	requireContains(t, out, filepath.Join(env.baseDir, "data"))
}

func TestTemplatesJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "templates", "--json")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	var entries []api.TemplateEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(entries) != len(config.DefaultTemplates()) {
		t.Fatalf("expected %d templates, got %d", len(config.DefaultTemplates()), len(entries))
	}
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	store, err := history.Open(filepath.Join(env.baseDir, "data", "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	ctx := context.Background()
	tk, _ := task.New("run-1", task.TypeFile, "/videos/lecture.mp4", "Lecture", "")
	if err := store.Begin(ctx, tk); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.RecordProgress(ctx, "run-1", task.StatusCompleted, 100, "done"); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	store.Close()

	out, _, err = runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Lecture")
	requireContains(t, out, "completed")
}

func TestStatusFromDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{
			Running:     true,
			PID:         4242,
			ActiveTasks: 2,
			Backend:     api.BackendStatus{State: "ready", Ready: true, Model: "base", Device: "cpu", Variant: "whispercpp"},
		})
	}))
	defer srv.Close()

	out, _, err := runCLI(t, env, "--api", srv.URL, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid 4242")
	requireContains(t, out, "2 active")
	requireContains(t, out, "cpu via whispercpp")
}

func TestSubmitPostsTask(t *testing.T) {
	env := setupCLITestEnv(t)
	var got api.SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{TaskID: "abc", Status: "pending"})
	}))
	defer srv.Close()

	out, _, err := runCLI(t, env, "--api", srv.URL, "submit", "https://example.com/v.mp4", "--title", "Demo", "-t", "qa")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Task abc accepted")
	if got.Source != "https://example.com/v.mp4" || got.Title != "Demo" || got.TemplateID != "qa" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestSubmitSurfacesDaemonError(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "source is required"})
	}))
	defer srv.Close()

	_, _, err := runCLI(t, env, "--api", srv.URL, "submit", " ")
	if err == nil || !strings.Contains(err.Error(), "source is required") {
		t.Fatalf("expected daemon error, got %v", err)
	}
}

func TestBuildTask(t *testing.T) {
	cfg := config.Default()
	cfg.Templates = config.DefaultTemplates()

	tk, err := buildTask(&cfg, "https://example.com/a.mp4", "", "A", "study")
	if err != nil {
		t.Fatalf("buildTask: %v", err)
	}
	if tk.Type != task.TypeURL || tk.TemplatePrompt == "" || tk.ID == "" {
		t.Fatalf("unexpected task: %+v", tk)
	}

	tk, err = buildTask(&cfg, "clip.mp4", "", "", "")
	if err != nil {
		t.Fatalf("buildTask: %v", err)
	}
	if tk.Type != task.TypeFile || !filepath.IsAbs(tk.Source) {
		t.Fatalf("expected absolute file source, got %+v", tk)
	}

	if _, err := buildTask(&cfg, "clip.mp4", "", "", "missing"); err == nil {
		t.Fatal("expected unknown template error")
	}
}

func TestProgressPrinterThrottlesPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	printer := newProgressPrinter(&buf, true)
	cb := printer.callback("clip.mp4")
	cb(task.StatusProcessing, 5, "Starting")
	cb(task.StatusProcessing, 6, "still starting")
	cb(task.StatusProcessing, 25, "Transcribing")
	cb(task.StatusCompleted, 100, "Done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	requireContains(t, lines[2], "[100%] completed")
}

func TestLogsFromDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	var gotTask string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/logs" {
			http.NotFound(w, r)
			return
		}
		gotTask = r.URL.Query().Get("task")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []logging.LogEvent{{
				Sequence:  1,
				Timestamp: time.Now(),
				Level:     "info",
				Message:   "subtitle track selected",
				Component: "pipeline",
				TaskID:    "t1",
				Fields:    map[string]string{"lang": "zh"},
			}},
			Next: 2,
		})
	}))
	defer srv.Close()

	out, _, err := runCLI(t, env, "--api", srv.URL, "logs", "--task", "t1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if gotTask != "t1" {
		t.Fatalf("expected task filter t1, got %q", gotTask)
	}
	requireContains(t, out, "INFO  [pipeline] task=t1 subtitle track selected lang=zh")
}

func TestLogsFallsBackToFile(t *testing.T) {
	env := setupCLITestEnv(t)
	logDir := filepath.Join(env.baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "first\nsecond\nthird\n"
	if err := os.WriteFile(filepath.Join(logDir, "videoinsight.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "first") {
		t.Fatalf("expected only the last two lines, got:\n%s", out)
	}
	requireContains(t, out, "second")
	requireContains(t, out, "third")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "not configured")
}

func TestTestNotifySendsToTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	fmt.Fprintf(f, "\n[notifications]\nntfy_topic = %q\n", srv.URL+"/videoinsight")
	f.Close()

	out, _, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits != 1 {
		t.Fatalf("expected 1 request, got %d", hits)
	}
}

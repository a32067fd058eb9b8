package source_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"videoinsight/internal/logging"
	"videoinsight/internal/services"
	"videoinsight/internal/source"
	"videoinsight/internal/task"
)

type namedDownloader struct {
	name   string
	prefix string
}

func (d namedDownloader) Name() string                 { return d.name }
func (d namedDownloader) CanHandle(rawURL string) bool { return strings.HasPrefix(rawURL, d.prefix) }
func (d namedDownloader) Download(context.Context, string, string, source.ProgressFunc) (string, source.Info, error) {
	return "", source.Info{}, errors.New("not used")
}

func TestRegistryFirstMatchWins(t *testing.T) {
	reg := source.NewRegistry(
		namedDownloader{name: "special", prefix: "https://special.example/"},
		namedDownloader{name: "generic", prefix: "https://"},
	)
	d, ok := reg.Resolve("https://special.example/v/1")
	if !ok || d.Name() != "special" {
		t.Fatalf("expected special downloader, got %v", d)
	}
	d, ok = reg.Resolve("https://other.example/v.mp4")
	if !ok || d.Name() != "generic" {
		t.Fatalf("expected generic downloader, got %v", d)
	}
	if _, ok := reg.Resolve("ftp://nope"); ok {
		t.Fatal("expected no downloader for ftp")
	}
	if got := strings.Join(reg.Platforms(), ","); got != "special,generic" {
		t.Fatalf("Platforms = %s", got)
	}
}

func TestHTTPDownloaderStreamsWithProgress(t *testing.T) {
	payload := strings.Repeat("v", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="lesson 1.mp4"`)
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	d := source.NewHTTPDownloader(source.HTTPOptions{Client: server.Client()})
	var last int
	path, info, err := d.Download(context.Background(), server.URL+"/dl?id=1", t.TempDir(), func(pct int, _ string) {
		if pct < last {
			t.Errorf("progress regressed %d -> %d", last, pct)
		}
		last = pct
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "lesson 1.mp4" || info.Title != "lesson 1" {
		t.Fatalf("unexpected path/info %s %+v", path, info)
	}
	if last != 100 {
		t.Fatalf("expected final progress 100, got %d", last)
	}
	data, _ := os.ReadFile(path)
	if len(data) != len(payload) {
		t.Fatalf("downloaded %d bytes", len(data))
	}
}

func TestHTTPDownloaderRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("video"))
	}))
	defer server.Close()

	var sleeps []time.Duration
	d := source.NewHTTPDownloader(source.HTTPOptions{
		Client:     server.Client(),
		MaxRetries: 3,
		Sleep:      func(d time.Duration) { sleeps = append(sleeps, d) },
	})
	path, _, err := d.Download(context.Background(), server.URL+"/clip.webm", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "clip.webm" {
		t.Fatalf("unexpected file name %s", path)
	}
	if hits.Load() != 3 || len(sleeps) != 2 || sleeps[1] <= sleeps[0] {
		t.Fatalf("hits=%d sleeps=%v", hits.Load(), sleeps)
	}
}

func TestHTTPDownloaderDoesNotRetryNotFound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()
	d := source.NewHTTPDownloader(source.HTTPOptions{Client: server.Client(), MaxRetries: 3, Sleep: func(time.Duration) {}})
	if _, _, err := d.Download(context.Background(), server.URL+"/missing.mp4", t.TempDir(), nil); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", hits.Load())
	}
}

func TestXiaohongshuResolvesNotePage(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/note", func(w http.ResponseWriter, r *http.Request) {
		media := strings.ReplaceAll(server.URL+"/stream/v.mp4?sign=1", "/", `\u002F`)
		fmt.Fprintf(w, `<script>window.__INITIAL_STATE__={"note":{"title":"做饭教程","user":{"nickname":"小厨"},"video":{"media":{"stream":{"h264":[{"masterUrl":"%s"}]}}}}}</script>`, media)
	})
	mux.HandleFunc("/stream/v.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp4data"))
	})

	direct := source.NewHTTPDownloader(source.HTTPOptions{Client: server.Client()})
	xhs := source.NewXiaohongshuDownloader(server.Client(), direct)
	if !xhs.CanHandle("https://www.xiaohongshu.com/explore/64abc123") || !xhs.CanHandle("http://xhslink.com/a/Bx12") {
		t.Fatal("expected xiaohongshu URLs to be accepted")
	}
	if xhs.CanHandle("https://example.com/v.mp4") {
		t.Fatal("expected other URLs to be rejected")
	}
	path, info, err := xhs.Download(context.Background(), server.URL+"/note", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if info.Title != "做饭教程" || info.Author != "小厨" {
		t.Fatalf("unexpected info %+v", info)
	}
	if filepath.Base(path) != "做饭教程.mp4" {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestAcquireLocalFile(t *testing.T) {
	provider := source.NewProviderWithRegistry(nil, logging.NewNop())
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := provider.Acquire(context.Background(), task.Task{ID: "1", Type: task.TypeFile, Source: video}, dir, nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got.Path != video || got.Title != "talk" || got.Downloaded {
		t.Fatalf("unexpected acquired %+v", got)
	}

	for _, bad := range []string{filepath.Join(dir, "missing.mp4"), dir} {
		_, err := provider.Acquire(context.Background(), task.Task{ID: "1", Type: task.TypeFile, Source: bad}, dir, nil)
		if !errors.Is(err, services.ErrSourceUnavailable) {
			t.Fatalf("Acquire(%s) = %v, want ErrSourceUnavailable", bad, err)
		}
	}
}

func TestAcquireUnsupportedURL(t *testing.T) {
	provider := source.NewProviderWithRegistry(source.NewRegistry(source.NewHTTPDownloader(source.HTTPOptions{})), logging.NewNop())
	_, err := provider.Acquire(context.Background(), task.Task{ID: "1", Type: task.TypeURL, Source: "ftp://host/v.mp4"}, t.TempDir(), nil)
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"videoinsight/internal/textutil"
)

const (
	defaultTimeout    = 300 * time.Second
	defaultRetryBase  = time.Second
	defaultRetryMax   = 10 * time.Second
	copyBufferSize    = 64 * 1024
	defaultVideoName  = "video.mp4"
	defaultUserAgent  = "VideoInsight/1.0"
	progressStepBytes = 1 << 20
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".webm": {}, ".avi": {}, ".m4v": {}, ".flv": {}, ".ts": {},
}

// HTTPOptions configures an HTTPDownloader.
type HTTPOptions struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	Client     *http.Client
	// Sleep overrides retry waits (primarily for tests).
	Sleep func(time.Duration)
}

// HTTPDownloader fetches direct media links over HTTP(S).
type HTTPDownloader struct {
	client    *http.Client
	retries   int
	userAgent string
	sleep     func(time.Duration)
}

// NewHTTPDownloader builds a downloader for direct links.
func NewHTTPDownloader(opts HTTPOptions) *HTTPDownloader {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &HTTPDownloader{client: client, retries: retries, userAgent: ua, sleep: opts.Sleep}
}

// Name identifies the downloader.
func (d *HTTPDownloader) Name() string { return "http" }

// CanHandle accepts any absolute http or https URL.
func (d *HTTPDownloader) CanHandle(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Download streams rawURL into destDir, retrying transient failures.
func (d *HTTPDownloader) Download(ctx context.Context, rawURL, destDir string, progress ProgressFunc) (string, Info, error) {
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			if err := d.wait(ctx, backoff(attempt)); err != nil {
				return "", Info{}, err
			}
		}
		path, info, err := d.fetch(ctx, rawURL, destDir, progress)
		if err == nil {
			return path, info, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return "", Info{}, lastErr
}

func (d *HTTPDownloader) fetch(ctx context.Context, rawURL, destDir string, progress ProgressFunc) (string, Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", Info{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return "", Info{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", Info{}, &statusError{code: resp.StatusCode, status: resp.Status}
	}

	name := fileName(resp, rawURL)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", Info{}, fmt.Errorf("create download dir: %w", err)
	}
	dest := filepath.Join(destDir, name)
	file, err := os.Create(dest)
	if err != nil {
		return "", Info{}, fmt.Errorf("create download file: %w", err)
	}
	counter := &progressWriter{total: resp.ContentLength, progress: progress}
	_, copyErr := io.CopyBuffer(io.MultiWriter(file, counter), resp.Body, make([]byte, copyBufferSize))
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dest)
		return "", Info{}, fmt.Errorf("write download: %w", copyErr)
	}
	if counter.written == 0 {
		_ = os.Remove(dest)
		return "", Info{}, errors.New("empty response body")
	}
	if progress != nil {
		progress(100, fmt.Sprintf("downloaded %d bytes", counter.written))
	}
	title := strings.TrimSuffix(name, filepath.Ext(name))
	return dest, Info{Title: title, Platform: d.Name()}, nil
}

func (d *HTTPDownloader) wait(ctx context.Context, delay time.Duration) error {
	if d.sleep != nil {
		d.sleep(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "unexpected status " + e.status }

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusRequestTimeout ||
			status.code == http.StatusTooManyRequests ||
			status.code >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// backoff doubles from one second, capped at ten.
func backoff(attempt int) time.Duration {
	delay := defaultRetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= defaultRetryMax {
			return defaultRetryMax
		}
	}
	return delay
}

func fileName(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := textutil.SanitizeFileName(filepath.Base(params["filename"])); name != "" && name != "." {
				return withVideoExt(name)
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if unescaped, err := url.PathUnescape(base); err == nil {
			base = unescaped
		}
		if name := textutil.SanitizeFileName(base); name != "" && name != "." && name != "-" {
			return withVideoExt(name)
		}
	}
	return defaultVideoName
}

func withVideoExt(name string) string {
	if _, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return name
	}
	return name + ".mp4"
}

type progressWriter struct {
	total    int64
	written  int64
	lastPct  int
	lastMark int64
	progress ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.progress == nil {
		return len(p), nil
	}
	if w.total > 0 {
		pct := int(w.written * 100 / w.total)
		if pct > 99 {
			pct = 99
		}
		if pct > w.lastPct {
			w.lastPct = pct
			w.progress(pct, fmt.Sprintf("%d/%d bytes", w.written, w.total))
		}
		return len(p), nil
	}
	if w.written-w.lastMark >= progressStepBytes {
		w.lastMark = w.written
		w.progress(0, fmt.Sprintf("%d bytes", w.written))
	}
	return len(p), nil
}

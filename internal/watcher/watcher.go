// Package watcher submits video files dropped into an inbox directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"videoinsight/internal/logging"
)

const (
	defaultMaxConcurrent = 2
	defaultSettle        = 500 * time.Millisecond
	maxSettleChecks      = 120
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mov":  {},
	".avi":  {},
	".mkv":  {},
	".webm": {},
	".m4v":  {},
	".flv":  {},
}

// Handler processes one settled video file.
type Handler func(ctx context.Context, path string) error

// Options tune a Watcher.
type Options struct {
	// MaxConcurrent bounds how many handlers run at once.
	MaxConcurrent int
	// Settle is the interval between size checks; a file is handed off once
	// two consecutive checks agree.
	Settle time.Duration
}

// Watcher monitors one directory for new video files.
type Watcher struct {
	dir     string
	handler Handler
	logger  *slog.Logger
	settle  time.Duration
	fs      *fsnotify.Watcher
	sem     chan struct{}

	mu      sync.Mutex
	pending map[string]struct{}
	wg      sync.WaitGroup
}

// New starts watching dir. Call Run to process events and Close when done.
func New(dir string, handler Handler, logger *slog.Logger, opts Options) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watcher requires a handler")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("inspect watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %q is not a directory", dir)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{
		dir:     dir,
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "watcher"),
		settle:  settle,
		fs:      fsw,
		sem:     make(chan struct{}, maxConcurrent),
		pending: make(map[string]struct{}),
	}, nil
}

// Run dispatches events until ctx ends, then waits for running handlers.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for new videos",
		logging.String("dir", w.dir),
		logging.Int("max_concurrent", cap(w.sem)),
	)
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping; waiting for running tasks")
			return ctx.Err()
		case event, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !IsVideoFile(event.Name) {
				w.logger.Debug("ignoring non-video file", logging.String("path", event.Name))
				continue
			}
			w.dispatch(ctx, event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", logging.Error(err))
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	w.mu.Lock()
	if _, busy := w.pending[path]; busy {
		w.mu.Unlock()
		return
	}
	w.pending[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
		}()

		if !w.waitSettled(ctx, path) {
			return
		}
		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-w.sem }()

		w.logger.Info("new video detected", logging.String("path", path))
		if err := w.handler(ctx, path); err != nil {
			w.logger.Error("failed to process video",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}()
}

// waitSettled polls the file size until it stops changing. It reports false
// when the file disappears or ctx ends.
func (w *Watcher) waitSettled(ctx context.Context, path string) bool {
	last := int64(-1)
	for range maxSettleChecks {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.settle):
		}
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Mode().IsRegular() && info.Size() > 0 && info.Size() == last {
			return true
		}
		last = info.Size()
	}
	w.logger.Warn("file never settled; skipping", logging.String("path", path))
	return false
}

// IsVideoFile reports whether path has a supported video extension.
func IsVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

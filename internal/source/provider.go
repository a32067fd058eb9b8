package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"videoinsight/internal/config"
	"videoinsight/internal/logging"
	"videoinsight/internal/services"
	"videoinsight/internal/task"
	"videoinsight/internal/textutil"
)

// Acquired is a video ready for extraction.
type Acquired struct {
	Path  string
	Title string
	Size  int64
	// Downloaded is true when Path lives in the task scratch directory.
	Downloaded bool
}

// Provider acquires task sources.
type Provider struct {
	registry *Registry
	logger   *slog.Logger
}

// NewProvider wires the default downloaders from config: the Xiaohongshu page
// resolver first, then direct HTTP links.
func NewProvider(cfg *config.Config, logger *slog.Logger) *Provider {
	timeout := time.Duration(cfg.Downloader.TimeoutSeconds) * time.Second
	direct := NewHTTPDownloader(HTTPOptions{
		Timeout:    timeout,
		MaxRetries: cfg.Downloader.MaxRetries,
		UserAgent:  cfg.Downloader.UserAgent,
	})
	registry := NewRegistry(
		NewXiaohongshuDownloader(&http.Client{Timeout: timeout}, direct),
		direct,
	)
	return NewProviderWithRegistry(registry, logger)
}

// NewProviderWithRegistry builds a provider around an explicit registry.
func NewProviderWithRegistry(registry *Registry, logger *slog.Logger) *Provider {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Provider{registry: registry, logger: logging.NewComponentLogger(logger, "source")}
}

// Registry exposes the downloader registry.
func (p *Provider) Registry() *Registry { return p.registry }

// Acquire resolves t to a local file. URL downloads land in workDir.
func (p *Provider) Acquire(ctx context.Context, t task.Task, workDir string, progress ProgressFunc) (Acquired, error) {
	switch t.Type {
	case task.TypeFile:
		return p.local(t)
	case task.TypeURL:
		return p.download(ctx, t, workDir, progress)
	default:
		return Acquired{}, services.Wrap(services.ErrValidation, "acquire", "resolve source", fmt.Sprintf("unknown task type %q", t.Type), nil)
	}
}

func (p *Provider) local(t task.Task) (Acquired, error) {
	path := strings.TrimSpace(t.Source)
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	info, err := os.Stat(path)
	if err != nil {
		return Acquired{}, services.Wrap(services.ErrSourceUnavailable, "acquire", "stat file", path, err)
	}
	if !info.Mode().IsRegular() {
		return Acquired{}, services.Wrap(services.ErrSourceUnavailable, "acquire", "stat file", path+" is not a regular file", nil)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Acquired{}, services.Wrap(services.ErrSourceUnavailable, "acquire", "check access", path+" is not readable", err)
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Acquired{Path: path, Title: title, Size: info.Size()}, nil
}

func (p *Provider) download(ctx context.Context, t task.Task, workDir string, progress ProgressFunc) (Acquired, error) {
	downloader, ok := p.registry.Resolve(t.Source)
	if !ok {
		return Acquired{}, services.Wrap(services.ErrSourceUnavailable, "acquire", "resolve downloader", "unsupported URL "+textutil.Truncate(t.Source, 100), nil)
	}
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("downloading source",
		logging.String("downloader", downloader.Name()),
		logging.String("url", textutil.Truncate(t.Source, 100)),
	)
	dest := filepath.Join(workDir, "downloads")
	path, info, err := downloader.Download(ctx, t.Source, dest, progress)
	if err != nil {
		return Acquired{}, services.Wrap(services.ErrSourceUnavailable, "acquire", "download", downloader.Name(), err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return Acquired{}, services.Wrap(services.ErrSourceUnavailable, "acquire", "stat download", path, err)
	}
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = info.Title
	}
	return Acquired{Path: path, Title: title, Size: stat.Size(), Downloaded: true}, nil
}

// renameIfFree renames from to to unless to already exists.
func renameIfFree(from, to string) error {
	if from == to {
		return nil
	}
	if _, err := os.Stat(to); err == nil {
		return errors.New("destination exists")
	}
	return os.Rename(from, to)
}

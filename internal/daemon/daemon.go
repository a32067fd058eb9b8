package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"videoinsight/internal/api"
	"videoinsight/internal/broadcast"
	"videoinsight/internal/config"
	"videoinsight/internal/history"
	"videoinsight/internal/logging"
	"videoinsight/internal/notifications"
	"videoinsight/internal/pipeline"
	"videoinsight/internal/preflight"
	"videoinsight/internal/server"
	"videoinsight/internal/services"
	"videoinsight/internal/services/llm"
	"videoinsight/internal/source"
	"videoinsight/internal/staging"
	"videoinsight/internal/subtitles"
	"videoinsight/internal/summary"
	"videoinsight/internal/task"
	"videoinsight/internal/transcription"
)

// Scratch directories older than this are assumed orphaned at startup.
const staleScratchAge = 24 * time.Hour

// Backend is the transcription service as the daemon sees it.
type Backend interface {
	pipeline.Transcriber
	Ready() bool
	Snapshot() transcription.Snapshot
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *history.Store
	backend Backend
	logs    *logging.StreamHub

	hub          *broadcast.Hub
	orchestrator *pipeline.Orchestrator
	recorder     *history.Recorder
	handoff      *summary.Handoff
	notifier     *notifications.Notifier
	server       *server.Server

	sources   pipeline.SourceProvider
	subtitles pipeline.SubtitleExtractor
	notes     summary.Notes
	warmup    bool

	lockPath string
	lock     *flock.Flock

	mu     sync.Mutex
	active map[string]struct{}
	tasks  sync.WaitGroup
	checks []preflight.Result

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	stopHub   context.CancelFunc
	hubDone   chan struct{}
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithStreamHub exposes the in-memory log stream on /api/logs.
func WithStreamHub(hub *logging.StreamHub) Option {
	return func(d *Daemon) { d.logs = hub }
}

// WithSources replaces the default source provider.
func WithSources(p pipeline.SourceProvider) Option {
	return func(d *Daemon) { d.sources = p }
}

// WithSubtitles replaces the default subtitle extractor.
func WithSubtitles(e pipeline.SubtitleExtractor) Option {
	return func(d *Daemon) { d.subtitles = e }
}

// WithNotes replaces the summarizer built from the summary config. It only
// takes effect when summary export is enabled.
func WithNotes(n summary.Notes) Option {
	return func(d *Daemon) { d.notes = n }
}

// WithoutWarmup skips loading the transcription backend at startup.
func WithoutWarmup() Option {
	return func(d *Daemon) { d.warmup = false }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *history.Store, backend Backend, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || backend == nil {
		return nil, errors.New("daemon requires config, history store, and transcription backend")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		backend:  backend,
		warmup:   true,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		active:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sources == nil {
		d.sources = source.NewProvider(cfg, logger)
	}
	if d.subtitles == nil {
		d.subtitles = subtitles.NewExtractor(cfg, logger)
	}

	d.hub = broadcast.NewHub(logger, broadcast.WithQueueSize(cfg.Events.QueueSize))
	d.orchestrator = pipeline.New(pipeline.OptionsFromConfig(cfg), d.sources, d.subtitles, backend, d.hub, logger)
	d.recorder = history.NewRecorder(store, logger)
	if svc := notifications.NewService(cfg.Notifications); notifications.Enabled(svc) {
		d.notifier = notifications.NewNotifier(svc, logger)
	}
	d.server = server.New(cfg.Paths.APIBind, server.Deps{
		Hub:       d.hub,
		Backend:   backend,
		Submitter: d,
		Status:    d,
		History:   store,
		Logs:      d.logs,
		Config:    cfg,
	}, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the hub, observers, API server
// and backend warm-up.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another videoinsight daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	hubCtx, stopHub := context.WithCancel(d.ctx)
	d.stopHub = stopHub
	d.hubDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		d.hub.Run(hubCtx)
	}(d.hubDone)
	d.hub.Subscribe(d.recorder)
	if d.notifier != nil {
		d.hub.Subscribe(d.notifier)
	}

	if d.cfg.Summary.Enabled {
		handoff, err := d.buildHandoff(d.ctx)
		if err != nil {
			logging.WarnWithContext(d.logger, "summary export disabled", "summary_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "transcripts are recorded but not summarized"),
			)
		} else {
			d.handoff = handoff
			d.hub.Subscribe(handoff)
		}
	}

	if err := d.server.Start(d.ctx); err != nil {
		d.cancel()
		<-d.hubDone
		_ = d.lock.Unlock()
		d.ctx, d.cancel, d.stopHub = nil, nil, nil
		return fmt.Errorf("start api server: %w", err)
	}

	staging.SweepStale(d.ctx, d.cfg.Paths.TempDir, staleScratchAge, d.logger)

	checks := preflight.RunAll(d.ctx, d.cfg)
	d.mu.Lock()
	d.checks = checks
	d.mu.Unlock()
	for _, failed := range preflight.Failed(checks) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
		)
	}

	if d.warmup {
		go d.warm(d.ctx)
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("videoinsight daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()),
	)
	return nil
}

func (d *Daemon) warm(ctx context.Context) {
	started := time.Now()
	if err := d.backend.EnsureLoaded(ctx); err != nil {
		logging.WarnWithContext(d.logger, "transcription backend warm-up failed", "backend_warmup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "backend loads on first task instead"),
		)
		return
	}
	d.hub.Publish(broadcast.StatusMessage(true))
	d.logger.Info("transcription backend ready",
		logging.String(logging.FieldBackend, d.backend.Snapshot().Backend),
		logging.Duration("elapsed", time.Since(started)),
	)
}

func (d *Daemon) buildHandoff(ctx context.Context) (*summary.Handoff, error) {
	notes := d.notes
	if notes == nil {
		completer, err := llm.NewFromConfig(ctx, llm.ConfigFromSummary(d.cfg.Summary))
		if err != nil {
			return nil, err
		}
		notes = summary.NewSummarizer(completer, d.logger)
	}
	prompt := ""
	if tpl, ok := d.cfg.Template(d.cfg.Summary.TemplateID); ok {
		prompt = tpl.Prompt
	}
	exporter := summary.NewExporter(d.cfg.Paths.OutputDir, d.cfg.Summary.ExportFormat)
	return summary.NewHandoff(notes, exporter, d.hub, prompt, d.logger), nil
}

// Stop rejects new submissions, waits for in-flight tasks, drains the hub
// into the summary handoff and notifier, waits for their background work and
// finally stops the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	wasRunning := d.running.Swap(false)
	d.mu.Unlock()
	if !wasRunning {
		return
	}

	d.tasks.Wait()

	// Observers only start background work from hub deliveries, so the hub
	// must be quiet before their Wait calls.
	d.stopHub()
	<-d.hubDone
	d.hub.Flush(context.Background())
	if d.handoff != nil {
		d.handoff.Wait()
		d.hub.Flush(context.Background())
	}
	if d.notifier != nil {
		d.notifier.Wait()
	}

	d.cancel()
	d.cancel, d.stopHub = nil, nil
	d.server.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.logger.Info("videoinsight daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Hub exposes the broadcast hub so in-process consumers can subscribe.
func (d *Daemon) Hub() *broadcast.Hub {
	return d.hub
}

// Addr returns the API listen address.
func (d *Daemon) Addr() string {
	return d.server.Addr()
}

// Submit records the task and processes it in the background.
func (d *Daemon) Submit(ctx context.Context, t task.Task) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("task id is required")
	}

	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return errors.New("daemon not running")
	}
	if _, busy := d.active[t.ID]; busy {
		d.mu.Unlock()
		return fmt.Errorf("task %s already running", t.ID)
	}
	d.active[t.ID] = struct{}{}
	d.tasks.Add(1)
	d.mu.Unlock()

	if err := d.store.Begin(ctx, t); err != nil {
		d.release(t.ID)
		d.tasks.Done()
		return fmt.Errorf("record task: %w", err)
	}

	go func() {
		defer d.tasks.Done()
		defer d.release(t.ID)
		result := d.orchestrator.Process(context.WithoutCancel(ctx), t, nil)
		if result.Success {
			d.logger.Info("task finished",
				logging.String(logging.FieldTaskID, t.ID),
				logging.Int("transcript_length", result.TranscriptLength()),
				logging.Bool("subtitle_used", result.SubtitleUsed),
			)
		}
	}()

	d.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, t.ID),
		logging.String("type", string(t.Type)),
		logging.String("source", t.Source),
	)
	return nil
}

func (d *Daemon) release(id string) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) api.DaemonStatus {
	snapshot := d.backend.Snapshot()
	variant := transcription.VariantWhisperCPP
	if snapshot.Profile != nil {
		variant = snapshot.Profile.Variant
	}

	d.mu.Lock()
	active := len(d.active)
	checks := append([]preflight.Result(nil), d.checks...)
	d.mu.Unlock()

	status := api.DaemonStatus{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		HistoryDBPath: d.store.Path(),
		LockFilePath:  d.lockPath,
		ActiveTasks:   active,
		Observers:     d.hub.Len(),
		DroppedEvents: d.hub.Dropped(),
		Backend:       api.FromSnapshot(snapshot),
		Dependencies:  preflight.CheckSystemDeps(d.cfg, variant),
		Checks:        checks,
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}
	return status
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/config"
	"videoinsight/internal/history"
	"videoinsight/internal/logging"
	"videoinsight/internal/notifications"
	"videoinsight/internal/pipeline"
	"videoinsight/internal/services/llm"
	"videoinsight/internal/source"
	"videoinsight/internal/subtitles"
	"videoinsight/internal/summary"
	"videoinsight/internal/transcription"
)

// directPublisher delivers synchronously so foreground commands see every
// event before Process returns.
type directPublisher struct {
	ctx context.Context
	hub *broadcast.Hub
}

func (p directPublisher) Publish(msg broadcast.Message) bool {
	p.hub.Broadcast(p.ctx, msg)
	return true
}

// localRuntime is the in-process pipeline used by process and watch.
type localRuntime struct {
	logger       *slog.Logger
	hub          *broadcast.Hub
	backend      *transcription.Service
	orchestrator *pipeline.Orchestrator
	store        *history.Store
	handoff      *summary.Handoff
	notifier     *notifications.Notifier

	mu      sync.Mutex
	outputs map[string]string
}

type runtimeOptions struct {
	language  string
	summarize bool
	template  string
}

func newLocalRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runtimeOptions) (*localRuntime, error) {
	rt := &localRuntime{
		logger:  logger,
		hub:     broadcast.NewHub(logger),
		outputs: make(map[string]string),
	}
	events := directPublisher{ctx: context.WithoutCancel(ctx), hub: rt.hub}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in `videoinsight history`"),
		)
	} else {
		rt.store = store
		rt.hub.Subscribe(history.NewRecorder(store, logger))
	}

	if svc := notifications.NewService(cfg.Notifications); notifications.Enabled(svc) {
		rt.notifier = notifications.NewNotifier(svc, logger)
		rt.hub.Subscribe(rt.notifier)
	}

	if opts.summarize {
		completer, err := llm.NewFromConfig(ctx, llm.ConfigFromSummary(cfg.Summary))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("summary: %w", err)
		}
		prompt := ""
		templateID := strings.TrimSpace(opts.template)
		if templateID == "" {
			templateID = cfg.Summary.TemplateID
		}
		if tpl, ok := cfg.Template(templateID); ok {
			prompt = tpl.Prompt
		} else if strings.TrimSpace(opts.template) != "" {
			rt.Close()
			return nil, fmt.Errorf("unknown template %q", opts.template)
		}
		exporter := summary.NewExporter(cfg.Paths.OutputDir, cfg.Summary.ExportFormat)
		rt.handoff = summary.NewHandoff(summary.NewSummarizer(completer, logger), exporter, events, prompt, logger)
		rt.hub.Subscribe(rt.handoff)
		rt.hub.Subscribe(broadcast.ObserverFunc("cli-outputs", rt.captureOutput))
	}

	pipeOpts := pipeline.OptionsFromConfig(cfg)
	if lang := strings.TrimSpace(opts.language); lang != "" {
		pipeOpts.Language = lang
	}
	rt.backend = transcription.New(cfg, logger)
	rt.orchestrator = pipeline.New(pipeOpts,
		source.NewProvider(cfg, logger),
		subtitles.NewExtractor(cfg, logger),
		rt.backend,
		events,
		logger,
	)
	return rt, nil
}

func (rt *localRuntime) captureOutput(_ context.Context, msg broadcast.Message) error {
	if msg.Type == broadcast.TypeTaskUpdate && msg.OutputPath != "" {
		rt.mu.Lock()
		rt.outputs[msg.TaskID] = msg.OutputPath
		rt.mu.Unlock()
	}
	return nil
}

// outputPath waits for summary export of taskID and returns the written file.
func (rt *localRuntime) outputPath(taskID string) string {
	if rt.handoff == nil {
		return ""
	}
	rt.handoff.Wait()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.outputs[taskID]
}

func (rt *localRuntime) Close() {
	if rt.handoff != nil {
		rt.handoff.Wait()
	}
	if rt.notifier != nil {
		rt.notifier.Wait()
	}
	if rt.backend != nil {
		rt.backend.Unload()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

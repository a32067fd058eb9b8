package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/config"
	"videoinsight/internal/logging"
	"videoinsight/internal/services"
	"videoinsight/internal/source"
	"videoinsight/internal/staging"
	"videoinsight/internal/task"
	"videoinsight/internal/textutil"
)

// Progress checkpoints. Download progress is mapped into
// [progressStarted, progressAcquired]; transcription progress into
// [progressTranscribe, progressExtracted].
const (
	progressStarted    = 5
	progressAcquired   = 20
	progressSubtitles  = 22
	progressTranscribe = 25
	progressExtracted  = 60
	progressComplete   = 100
)

const (
	stageAcquire  = "acquire"
	stageExtract  = "extract"
	stageComplete = "complete"
)

// Options tune an Orchestrator.
type Options struct {
	// TempDir is the parent of per-task scratch directories.
	TempDir string
	// Language is passed to the transcriber.
	Language string
	// TaskLogDir, when set, receives one JSON log file per task.
	TaskLogDir string
	LogLevel   string
}

// OptionsFromConfig derives orchestrator options from the loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		TempDir:  cfg.Paths.TempDir,
		Language: cfg.Transcription.Language,
		LogLevel: cfg.Logging.Level,
	}
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		opts.TaskLogDir = filepath.Join(cfg.Paths.LogDir, "tasks")
	}
	return opts
}

// Orchestrator runs tasks through acquire, extract and complete.
type Orchestrator struct {
	opts        Options
	sources     SourceProvider
	subtitles   SubtitleExtractor
	transcriber Transcriber
	events      Publisher
	logger      *slog.Logger
}

// New builds an orchestrator. events may be nil when nobody listens.
func New(opts Options, sources SourceProvider, subs SubtitleExtractor, transcriber Transcriber, events Publisher, logger *slog.Logger) *Orchestrator {
	if events == nil {
		events = discard{}
	}
	return &Orchestrator{
		opts:        opts,
		sources:     sources,
		subtitles:   subs,
		transcriber: transcriber,
		events:      events,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

type discard struct{}

func (discard) Publish(broadcast.Message) bool { return true }

// Process runs t to completion and returns its result. It never returns an
// error: stage failures are reported as events and folded into the result.
func (o *Orchestrator) Process(ctx context.Context, t task.Task, callback ProgressCallback) (result task.Result) {
	ctx = services.WithTaskID(context.WithoutCancel(ctx), t.ID)
	r := o.newRun(ctx, t, callback)
	defer r.close()

	result = task.Result{TaskID: t.ID, Type: t.Type, Source: t.Source, Title: t.Title}
	defer func() {
		if rec := recover(); rec != nil {
			result = o.fail(r, result, fmt.Errorf("panic during processing: %v", rec))
		}
	}()

	start := time.Now()
	out, err := o.execute(ctx, r)
	if err != nil {
		return o.fail(r, result, err)
	}

	result.Success = true
	result.Transcript = out.text
	result.SubtitleUsed = out.subtitleUsed
	if result.Title == "" {
		result.Title = out.title
	}

	o.events.Publish(broadcast.Message{
		Type:             broadcast.TypeTranscriptReady,
		TaskID:           t.ID,
		Transcript:       result.Transcript,
		TranscriptLength: result.TranscriptLength(),
		TemplatePrompt:   t.TemplatePrompt,
		Source:           t.Source,
		Title:            result.Title,
		TaskType:         string(t.Type),
		SubtitleUsed:     result.SubtitleUsed,
	})
	r.log(task.LevelInfo, fmt.Sprintf("Task completed in %s", time.Since(start).Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "task_completed"),
		logging.Int("transcript_length", result.TranscriptLength()),
		logging.Bool("subtitle_used", result.SubtitleUsed),
	)
	o.events.Publish(broadcast.TaskUpdateMessage(t.ID, string(task.StatusCompleted), progressComplete, "transcription completed", ""))
	r.report(task.StatusCompleted, progressComplete, "transcription completed")
	return result
}

type outcome struct {
	text         string
	title        string
	subtitleUsed bool
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (outcome, error) {
	t := r.task
	if strings.TrimSpace(t.Source) == "" {
		return outcome{}, services.Wrap(services.ErrValidation, "init", "validate task", "source is empty", nil)
	}

	workDir, err := o.makeWorkDir(t.ID)
	if err != nil {
		return outcome{}, err
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logging.WarnWithContext(r.logger, "temp directory cleanup failed", "cleanup_failed",
				logging.String("path", workDir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "scratch files left on disk"),
			)
			return
		}
		r.logger.Debug("temp directory removed", logging.String("path", workDir))
	}()

	r.log(task.LevelInfo, "Starting processing task: "+t.ID)
	r.log(task.LevelInfo, fmt.Sprintf("Task type: %s, Source: %s", t.Type, textutil.Truncate(t.Source, 100)))
	// URL tasks start in downloading so the status never steps back from
	// processing while the download runs.
	initial := task.StatusProcessing
	if t.Type == task.TypeURL {
		initial = task.StatusDownloading
	}
	r.report(initial, progressStarted, "task started")

	acquired, err := o.acquire(services.WithStage(ctx, stageAcquire), r, workDir)
	if err != nil {
		return outcome{}, err
	}
	r.report(task.StatusProcessing, progressAcquired, "video ready")

	text, subtitleUsed, err := o.extract(services.WithStage(ctx, stageExtract), r, acquired.Path, workDir)
	if err != nil {
		return outcome{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return outcome{}, services.Wrap(services.ErrEmptyTranscript, stageComplete, "validate transcript", "no text was produced", nil)
	}
	r.log(task.LevelInfo, fmt.Sprintf("Transcription completed, total chars: %d", len([]rune(text))))
	r.report(task.StatusProcessing, progressExtracted, "text extracted")
	return outcome{text: text, title: acquired.Title, subtitleUsed: subtitleUsed}, nil
}

func (o *Orchestrator) makeWorkDir(taskID string) (string, error) {
	parent := strings.TrimSpace(o.opts.TempDir)
	if parent == "" {
		parent = os.TempDir()
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "init", "create temp root", parent, err)
	}
	dir, err := os.MkdirTemp(parent, staging.ScratchPrefix+textutil.SanitizeToken(taskID)+"_")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "init", "create temp dir", parent, err)
	}
	return dir, nil
}

func (o *Orchestrator) acquire(ctx context.Context, r *run, workDir string) (source.Acquired, error) {
	t := r.task
	start := o.stageStarted(ctx, r)
	var sink source.ProgressFunc
	if t.Type == task.TypeURL {
		r.log(task.LevelInfo, "Downloading video from URL: "+textutil.Truncate(t.Source, 100))
		lastDecile := -1
		sink = func(percent int, detail string) {
			if percent < 0 {
				percent = 0
			}
			if percent > 100 {
				percent = 100
			}
			mapped := progressStarted + percent*(progressAcquired-progressStarted)/100
			r.report(task.StatusDownloading, mapped, "downloading: "+detail)
			if decile := percent / 10; decile > lastDecile {
				lastDecile = decile
				r.log(task.LevelInfo, fmt.Sprintf("Download progress: %d%% - %s", percent, detail))
			}
		}
	}
	acquired, err := o.sources.Acquire(ctx, t, workDir, sink)
	if err != nil {
		return source.Acquired{}, err
	}
	if acquired.Downloaded {
		r.log(task.LevelInfo, "Video download completed: "+filepath.Base(acquired.Path))
	} else {
		r.log(task.LevelInfo, "Using local file: "+acquired.Path)
	}
	r.log(task.LevelInfo, fmt.Sprintf("File size: %.2f MB", float64(acquired.Size)/1024/1024))
	o.stageCompleted(ctx, r, start)
	return acquired, nil
}

func (o *Orchestrator) extract(ctx context.Context, r *run, videoPath, workDir string) (string, bool, error) {
	start := o.stageStarted(ctx, r)
	defer o.stageCompleted(ctx, r, start)

	r.report(task.StatusProcessing, progressSubtitles, "checking embedded subtitles")
	subs, err := o.subtitles.Extract(ctx, videoPath, workDir)
	if err != nil {
		r.log(task.LevelWarning, "Subtitle extraction failed, falling back to speech recognition: "+err.Error(),
			logging.String(logging.FieldEventType, "subtitle_fallback"),
			logging.String(logging.FieldErrorHint, "check ffmpeg and ffprobe"),
			logging.String(logging.FieldImpact, "speech recognition used instead"),
		)
	} else if strings.TrimSpace(subs.Text) != "" {
		r.log(task.LevelInfo, fmt.Sprintf("Subtitles found, using embedded subtitles (%d characters)", len([]rune(subs.Text))))
		return subs.Text, true, nil
	}

	r.log(task.LevelInfo, "No subtitles found, using speech recognition")
	r.report(task.StatusProcessing, progressTranscribe, "starting speech recognition")
	if err := o.transcriber.EnsureLoaded(ctx); err != nil {
		if !errors.Is(err, services.ErrModelLoad) {
			err = services.Wrap(services.ErrModelLoad, stageExtract, "load backend", "", err)
		}
		return "", false, err
	}

	sampler := logging.NewProgressSampler(20)
	res, err := o.transcriber.TranscribeVideo(ctx, videoPath, o.opts.Language, func(p int) {
		mapped := progressTranscribe + p*(progressExtracted-progressTranscribe)/100
		r.report(task.StatusProcessing, mapped, fmt.Sprintf("speech recognition: %d%%", p))
		if sampler.ShouldLog(p, stageExtract) {
			r.log(task.LevelInfo, fmt.Sprintf("Speech recognition progress: %d%%", p))
		}
	})
	if err != nil {
		if !errors.Is(err, services.ErrTranscription) && !errors.Is(err, services.ErrModelLoad) {
			err = services.Wrap(services.ErrTranscription, stageExtract, "transcribe", "", err)
		}
		return "", false, err
	}
	r.log(task.LevelInfo, fmt.Sprintf("Speech recognition completed in %s (backend %s)", res.Elapsed.Round(time.Millisecond), res.Backend))
	return res.Text, false, nil
}

func (o *Orchestrator) stageStarted(ctx context.Context, r *run) time.Time {
	stageLogger(ctx, r).Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	return time.Now()
}

func (o *Orchestrator) stageCompleted(ctx context.Context, r *run, start time.Time) {
	stageLogger(ctx, r).Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(start)),
	)
}

// fail reports err exactly once: a failed progress event, a failed
// task_update and an error task_log.
func (o *Orchestrator) fail(r *run, result task.Result, err error) task.Result {
	kind := services.Kind(err)
	message := "processing failed: " + err.Error()
	r.log(task.LevelError, message,
		logging.String(logging.FieldEventType, "task_failed"),
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
		logging.Error(err),
	)
	progress := r.current()
	o.events.Publish(broadcast.TaskUpdateMessage(r.task.ID, string(task.StatusFailed), progress, message, ""))
	r.report(task.StatusFailed, progress, message)

	result.Success = false
	result.Transcript = ""
	result.Error = err.Error()
	result.ErrorKind = kind
	return result
}

func stageLogger(ctx context.Context, r *run) *slog.Logger {
	if stage, ok := services.StageFromContext(ctx); ok {
		return r.logger.With(logging.String(logging.FieldStage, stage))
	}
	return r.logger
}

func (o *Orchestrator) newRun(ctx context.Context, t task.Task, callback ProgressCallback) *run {
	r := &run{task: t, events: o.events, callback: callback, status: task.StatusPending}
	base := o.logger
	if dir := strings.TrimSpace(o.opts.TaskLogDir); dir != "" {
		handler, closer, err := logging.OpenTaskLog(dir, textutil.SanitizeToken(t.ID), o.opts.LogLevel)
		if err != nil {
			logging.WithContext(ctx, base).Warn("task log unavailable", logging.Error(err))
		} else {
			base = logging.TeeLogger(base, handler)
			r.closer = closer
		}
	}
	r.logger = logging.WithContext(ctx, base)
	return r
}

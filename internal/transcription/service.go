package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"videoinsight/internal/config"
	"videoinsight/internal/logging"
	"videoinsight/internal/media/ffprobe"
	"videoinsight/internal/services"
	"videoinsight/internal/services/asr"
	"videoinsight/internal/services/whispercpp"
	"videoinsight/internal/services/whisperx"
)

// State is the lifecycle state of the backend.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
)

// Backend is one speech recognition implementation.
type Backend interface {
	Name() string
	Load(ctx context.Context) error
	Transcribe(ctx context.Context, audioPath, language string, sink asr.SegmentSink) (string, error)
}

// Factory builds the backend for a profile.
type Factory func(profile DeviceProfile) (Backend, error)

// DurationProber returns the media duration of a file, or 0 when unknown.
type DurationProber func(ctx context.Context, path string) (time.Duration, error)

// Result is the outcome of one transcription.
type Result struct {
	Text          string
	Elapsed       time.Duration
	AudioDuration time.Duration
	Backend       string
}

// RealTimeFactor returns elapsed/duration, or 0 when the duration is unknown.
func (r Result) RealTimeFactor() float64 {
	if r.AudioDuration <= 0 {
		return 0
	}
	return r.Elapsed.Seconds() / r.AudioDuration.Seconds()
}

// Snapshot describes the service for status endpoints.
type Snapshot struct {
	State   State          `json:"state"`
	Backend string         `json:"backend,omitempty"`
	Profile *DeviceProfile `json:"profile,omitempty"`
	Model   string         `json:"model"`
}

// Option configures a Service.
type Option func(*Service)

// WithFactory replaces backend construction (primarily for tests).
func WithFactory(f Factory) Option {
	return func(s *Service) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithProber replaces hardware probing.
func WithProber(p Prober) Option {
	return func(s *Service) {
		if p != nil {
			s.prober = p
		}
	}
}

// WithDurationProber replaces the ffprobe duration lookup.
func WithDurationProber(p DurationProber) Option {
	return func(s *Service) {
		if p != nil {
			s.probeDuration = p
		}
	}
}

// WithExecutor replaces the executor used for audio extraction.
func WithExecutor(exec asr.Executor) Option {
	return func(s *Service) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithGetenv replaces environment lookups.
func WithGetenv(fn func(string) string) Option {
	return func(s *Service) {
		if fn != nil {
			s.getenv = fn
		}
	}
}

// Service is the process-wide transcription backend. Construct one per
// process and share it by pointer.
type Service struct {
	cfg    config.Transcription
	paths  config.Paths
	logger *slog.Logger

	factory       Factory
	prober        Prober
	probeDuration DurationProber
	exec          asr.Executor
	getenv        func(string) string

	loadMu sync.Mutex

	mu      sync.RWMutex
	state   State
	backend Backend
	profile *DeviceProfile
}

// New constructs an unloaded service.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg.Transcription,
		paths:  cfg.Paths,
		logger: logging.NewComponentLogger(logger, "transcription"),
		state:  StateUnloaded,
		prober: HardwareProber{},
		exec:   asr.CommandExecutor{},
		getenv: os.Getenv,
	}
	s.factory = s.defaultFactory
	s.probeDuration = s.ffprobeDuration
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready reports whether a backend is loaded.
func (s *Service) Ready() bool {
	return s.State() == StateReady
}

// Snapshot returns the state, loaded backend and profile.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{State: s.state, Model: s.cfg.Model}
	if s.backend != nil {
		snap.Backend = s.backend.Name()
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

// Profile returns the device profile, selecting it on first use.
func (s *Service) Profile(ctx context.Context) DeviceProfile {
	s.mu.RLock()
	if s.profile != nil {
		p := *s.profile
		s.mu.RUnlock()
		return p
	}
	s.mu.RUnlock()

	profile := SelectProfile(ctx, SelectionInput{
		Override:   s.getenv(EnvBackend),
		Configured: s.cfg.Device,
	}, s.prober)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile != nil {
		return *s.profile
	}
	s.profile = &profile
	return profile
}

// ResetProfile forgets the selected profile so the next load re-selects.
// A loaded backend stays loaded until Unload.
func (s *Service) ResetProfile() {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
}

// EnsureLoaded loads the backend unless it is already ready.
func (s *Service) EnsureLoaded(ctx context.Context) error {
	if s.Ready() {
		return nil
	}
	return s.Load(ctx)
}

// Load selects and loads the backend. Concurrent callers wait for the first
// load and share its outcome when it succeeds.
func (s *Service) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.Ready() {
		return nil
	}
	s.setState(StateLoading)

	profile := s.Profile(ctx)
	logger := s.logger.With(
		logging.String(logging.FieldBackend, string(profile.Variant)),
		logging.String("device", string(profile.Device)),
	)
	if profile.Downgraded {
		logging.WarnWithContext(logger, "accelerated backend unavailable", "transcription_downgrade",
			logging.String("reason", profile.Reason),
			logging.String(logging.FieldErrorHint, "install NVIDIA drivers or set transcription.device = \"cpu\""),
			logging.String(logging.FieldImpact, "transcription runs on CPU"),
		)
	}

	start := time.Now()
	backend, err := s.loadBackend(ctx, profile)
	if err != nil && profile.Variant == VariantWhisperX {
		logging.WarnWithContext(logger, "accelerated backend failed to load; falling back to whispercpp", "transcription_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transcription runs on CPU"),
		)
		fallback := DeviceProfile{
			Device:     DeviceCPU,
			Variant:    VariantWhisperCPP,
			Reason:     "whisperx load failed: " + err.Error(),
			Downgraded: true,
		}
		backend, err = s.loadBackend(ctx, fallback)
		if err == nil {
			s.mu.Lock()
			s.profile = &fallback
			s.mu.Unlock()
			profile = fallback
		}
	}
	if err != nil {
		s.setState(StateUnloaded)
		wrapped := services.Wrap(services.ErrModelLoad, "transcription", "load backend", string(profile.Variant), err)
		logging.ErrorWithContext(logger, "backend load failed", "transcription_load_failed",
			logging.Error(wrapped),
			logging.String(logging.FieldErrorHint, services.Hint(wrapped)),
		)
		return wrapped
	}

	s.mu.Lock()
	s.backend = backend
	s.state = StateReady
	s.mu.Unlock()

	logger.Info("transcription backend ready",
		logging.String(logging.FieldEventType, "transcription_ready"),
		logging.String("reason", profile.Reason),
		logging.Duration("load_time", time.Since(start)),
	)
	return nil
}

func (s *Service) loadBackend(ctx context.Context, profile DeviceProfile) (Backend, error) {
	backend, err := s.factory(profile)
	if err != nil {
		return nil, err
	}
	if err := backend.Load(ctx); err != nil {
		return nil, err
	}
	return backend, nil
}

// Unload drops the backend. The next use loads it again.
func (s *Service) Unload() {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	s.mu.Lock()
	wasLoaded := s.backend != nil
	s.backend = nil
	s.state = StateUnloaded
	s.mu.Unlock()
	if wasLoaded {
		s.logger.Info("transcription backend unloaded", logging.String(logging.FieldEventType, "transcription_unloaded"))
	}
}

// Transcribe decodes a WAV file. progress receives increasing values in
// 10..99 while decoding and 100 after success.
func (s *Service) Transcribe(ctx context.Context, audioPath, language string, progress func(int)) (Result, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return Result{}, err
	}
	s.mu.RLock()
	backend := s.backend
	s.mu.RUnlock()
	if backend == nil {
		return Result{}, services.Wrap(services.ErrModelLoad, "transcription", "transcribe", "backend unloaded during call", nil)
	}
	if strings.TrimSpace(language) == "" {
		language = s.cfg.Language
	}

	total, err := s.probeDuration(ctx, audioPath)
	if err != nil {
		s.logger.Debug("duration probe failed; progress will stay coarse", logging.Error(err))
		total = 0
	}

	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldBackend, backend.Name()))
	sampler := logging.NewProgressSampler(20)
	tracker := newProgressTracker(progress)
	tracker.report(progressFloor)

	start := time.Now()
	text, err := backend.Transcribe(ctx, audioPath, language, func(seg asr.Segment) {
		p := Percent(seg.End, total)
		if tracker.report(p) && sampler.ShouldLog(p, "transcribe") {
			logger.Info("transcription progress",
				logging.Int(logging.FieldProgress, p),
				logging.Duration("position", seg.End),
				logging.Duration("total", total),
			)
		}
	})
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTranscription, "transcription", "decode audio", backend.Name(), err)
	}

	tracker.report(100)
	result := Result{Text: strings.TrimSpace(text), Elapsed: elapsed, AudioDuration: total, Backend: backend.Name()}
	logger.Info("transcription completed",
		logging.String(logging.FieldEventType, "transcription_completed"),
		logging.Duration("elapsed", elapsed),
		logging.Duration("audio_duration", total),
		logging.Float64("real_time_factor", result.RealTimeFactor()),
		logging.Int("characters", len([]rune(result.Text))),
	)
	return result, nil
}

// TranscribeVideo extracts the audio track of videoPath into a scratch WAV,
// transcribes it and removes the scratch files on every path.
func (s *Service) TranscribeVideo(ctx context.Context, videoPath, language string, progress func(int)) (Result, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return Result{}, err
	}
	info, err := os.Stat(videoPath)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", videoPath)
		}
		return Result{}, services.Wrap(services.ErrTranscription, "transcription", "open video", videoPath, err)
	}

	scratch, err := os.MkdirTemp(s.workDir(), "asr_*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrTranscription, "transcription", "create scratch dir", "", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Warn("scratch audio cleanup failed", logging.String("path", scratch), logging.Error(err))
		}
	}()

	wav := filepath.Join(scratch, "audio.wav")
	if err := asr.ExtractAudio(ctx, s.exec, s.cfg.FFmpegBinary, videoPath, wav); err != nil {
		return Result{}, services.Wrap(services.ErrTranscription, "transcription", "extract audio", "no usable audio track", err)
	}
	return s.Transcribe(ctx, wav, language, progress)
}

func (s *Service) workDir() string {
	if dir := strings.TrimSpace(s.paths.TempDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir
		}
	}
	return os.TempDir()
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Service) defaultFactory(profile DeviceProfile) (Backend, error) {
	switch profile.Variant {
	case VariantWhisperX:
		model := s.cfg.Model
		if model == "" || model == whispercpp.DefaultModel {
			model = whisperx.DefaultModel
		}
		return whisperx.NewService(whisperx.Config{
			Model:         model,
			ModelCacheDir: filepath.Join(s.paths.ModelCacheDir, "huggingface"),
			HFToken:       s.cfg.HuggingFaceToken,
			UVXBinary:     s.cfg.UVXBinary,
		}), nil
	case VariantWhisperCPP:
		return whispercpp.NewService(whispercpp.Config{
			Binary:        s.cfg.WhisperCPPBinary,
			Model:         s.cfg.Model,
			Quantization:  s.cfg.Quantization,
			Threads:       s.cfg.Threads,
			ModelCacheDir: s.paths.ModelCacheDir,
			ModelBaseURL:  s.cfg.ModelBaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend variant %q", profile.Variant)
	}
}

func (s *Service) ffprobeDuration(ctx context.Context, path string) (time.Duration, error) {
	result, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary, path)
	if err != nil {
		return 0, err
	}
	return result.Duration(), nil
}

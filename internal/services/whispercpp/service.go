package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	langpkg "videoinsight/internal/language"
	"videoinsight/internal/services/asr"
)

const (
	DefaultBinary       = "whisper-cli"
	DefaultModel        = "base"
	DefaultQuantization = "q5_1"
	DefaultModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"
)

// Config contains settings for whisper.cpp transcription.
type Config struct {
	Binary        string
	Model         string
	Quantization  string
	Threads       int
	ModelCacheDir string
	ModelBaseURL  string
}

// Service runs whisper.cpp against WAV input.
type Service struct {
	cfg        Config
	exec       asr.Executor
	httpClient *http.Client
	lookPath   func(string) (string, error)
}

// Option configures the service.
type Option func(*Service)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec asr.Executor) Option {
	return func(s *Service) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithHTTPClient overrides the client used for model downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithLookPath overrides binary resolution (primarily for tests).
func WithLookPath(fn func(string) (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.lookPath = fn
		}
	}
}

// NewService creates a whisper.cpp service, filling unset fields with defaults.
func NewService(cfg Config, opts ...Option) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = DefaultBinary
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}
	if strings.TrimSpace(cfg.ModelBaseURL) == "" {
		cfg.ModelBaseURL = DefaultModelBaseURL
	}
	s := &Service{
		cfg:        cfg,
		exec:       asr.CommandExecutor{},
		httpClient: http.DefaultClient,
		lookPath:   exec.LookPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the backend in logs and status output.
func (s *Service) Name() string { return "whispercpp" }

// Threads returns the decoder thread count.
func (s *Service) Threads() int { return s.cfg.Threads }

// ModelFile returns the ggml file name for the configured model, for
// example ggml-base-q5_1.bin.
func (s *Service) ModelFile() string {
	name := "ggml-" + s.cfg.Model
	if q := strings.TrimSpace(s.cfg.Quantization); q != "" {
		name += "-" + q
	}
	return name + ".bin"
}

// ModelPath returns where the model file lives in the cache.
func (s *Service) ModelPath() string {
	return filepath.Join(s.cfg.ModelCacheDir, s.ModelFile())
}

// ModelURL returns the download location of the model file.
func (s *Service) ModelURL() string {
	return strings.TrimRight(s.cfg.ModelBaseURL, "/") + "/" + s.ModelFile()
}

// Load resolves the CLI and makes sure the model file is cached.
func (s *Service) Load(ctx context.Context) error {
	if _, err := s.lookPath(s.cfg.Binary); err != nil {
		return fmt.Errorf("whispercpp: resolve %s: %w", s.cfg.Binary, err)
	}
	if strings.TrimSpace(s.cfg.ModelCacheDir) == "" {
		return errors.New("whispercpp: model cache directory not configured")
	}
	if err := ensureModel(ctx, s.httpClient, s.ModelURL(), s.ModelPath()); err != nil {
		return fmt.Errorf("whispercpp: %w", err)
	}
	return nil
}

// Transcribe decodes audioPath, streaming segments to sink, and returns the
// full transcript.
func (s *Service) Transcribe(ctx context.Context, audioPath, language string, sink asr.SegmentSink) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", errors.New("whispercpp: audio path required")
	}
	var (
		mu       sync.Mutex
		segments []asr.Segment
	)
	onLine := func(line string) {
		seg, ok := asr.ParseBracketed(line)
		if !ok {
			return
		}
		mu.Lock()
		segments = append(segments, seg)
		mu.Unlock()
		if sink != nil {
			sink(seg)
		}
	}
	if err := s.exec.Run(ctx, s.cfg.Binary, s.buildArgs(audioPath, language), nil, onLine); err != nil {
		return "", fmt.Errorf("whispercpp: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	return asr.JoinSegments(segments), nil
}

func (s *Service) buildArgs(audioPath, language string) []string {
	lang := langpkg.ToISO2(language)
	if lang == "" {
		lang = langpkg.Auto
	}
	return []string{
		"-m", s.ModelPath(),
		"-f", audioPath,
		"-t", strconv.Itoa(s.cfg.Threads),
		"-l", lang,
		"-np",
	}
}

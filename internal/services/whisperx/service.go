package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	langpkg "videoinsight/internal/language"
	"videoinsight/internal/services/asr"
)

// Service runs WhisperX on CUDA through uvx.
type Service struct {
	cfg      Config
	exec     asr.Executor
	lookPath func(string) (string, error)
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

// WithLookPath overrides binary resolution (primarily for tests).
func WithLookPath(fn func(string) (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.lookPath = fn
		}
	}
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, opts ...Option) *Service {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.UVXBinary) == "" {
		cfg.UVXBinary = UVXCommand
	}
	s := &Service{cfg: cfg, exec: asr.CommandExecutor{}, lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the backend in logs and status output.
func (s *Service) Name() string { return "whisperx" }

// Model returns the configured model name for logging.
func (s *Service) Model() string { return s.cfg.Model }

// Load checks that uvx resolves and prepares the weight cache. WhisperX
// fetches weights lazily on first run, into the cache prepared here.
func (s *Service) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.lookPath(s.cfg.UVXBinary); err != nil {
		return fmt.Errorf("whisperx: resolve %s: %w", s.cfg.UVXBinary, err)
	}
	if dir := strings.TrimSpace(s.cfg.ModelCacheDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("whisperx: prepare model cache: %w", err)
		}
	}
	return nil
}

// Transcribe decodes audioPath, streaming segments to sink, and returns the
// full transcript. When WhisperX leaves a JSON result next to the audio its
// segments take precedence over the streamed ones.
func (s *Service) Transcribe(ctx context.Context, audioPath, language string, sink asr.SegmentSink) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", errors.New("whisperx: audio path required")
	}
	outputDir := filepath.Dir(audioPath)

	var (
		mu       sync.Mutex
		streamed []asr.Segment
	)
	onLine := func(line string) {
		seg, ok := parseTranscriptLine(line)
		if !ok {
			return
		}
		mu.Lock()
		streamed = append(streamed, seg)
		mu.Unlock()
		if sink != nil {
			sink(seg)
		}
	}

	if err := s.exec.Run(ctx, s.cfg.UVXBinary, s.buildArgs(audioPath, outputDir, language), s.env(), onLine); err != nil {
		return "", fmt.Errorf("whisperx: %w", err)
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".json")
	if segments, err := LoadSegments(jsonPath); err == nil && len(segments) > 0 {
		return asr.JoinSegments(segments), nil
	}
	mu.Lock()
	defer mu.Unlock()
	return asr.JoinSegments(streamed), nil
}

func (s *Service) env() []string {
	env := []string{
		// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
		"TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1",
	}
	if dir := strings.TrimSpace(s.cfg.ModelCacheDir); dir != "" {
		env = append(env, "HF_HOME="+dir)
	}
	if token := strings.TrimSpace(s.cfg.HFToken); token != "" {
		env = append(env, "HF_TOKEN="+token)
	}
	return env
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 32)
	args = append(args,
		"--index-url", CUDAIndexURL,
		"--extra-index-url", PypiIndexURL,
		"whisperx",
		source,
		"--model", s.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--verbose", "True",
	)
	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}
	args = append(args, "--device", CUDADevice, "--compute_type", CUDAComputeType)
	return args
}

// parseTranscriptLine reads "Transcript: [12.340 --> 15.120] text".
func parseTranscriptLine(line string) (asr.Segment, bool) {
	idx := strings.Index(line, transcriptPrefix)
	if idx < 0 {
		return asr.Segment{}, false
	}
	return asr.ParseBracketed(line[idx+len(transcriptPrefix):])
}

type jsonSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []jsonSegment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]asr.Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	segments := make([]asr.Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		segments = append(segments, asr.Segment{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  seg.Text,
		})
	}
	return segments, nil
}

package subtitles

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"videoinsight/internal/config"
	langpkg "videoinsight/internal/language"
	"videoinsight/internal/logging"
	"videoinsight/internal/media/ffprobe"
	"videoinsight/internal/services"
	"videoinsight/internal/services/asr"
)

// bitmapCodecs carry images rather than text and cannot become SRT.
var bitmapCodecs = map[string]struct{}{
	"hdmv_pgs_subtitle": {},
	"dvd_subtitle":      {},
	"dvb_subtitle":      {},
	"xsub":              {},
}

// Inspector lists the streams of a media file.
type Inspector func(ctx context.Context, path string) (ffprobe.Result, error)

// Result describes the extracted subtitle text.
type Result struct {
	Text        string
	StreamIndex int
	Language    string
	Cues        int
}

// Extractor converts embedded text subtitles to plain text.
type Extractor struct {
	ffmpeg    string
	preferred string
	inspect   Inspector
	exec      asr.Executor
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithInspector replaces the ffprobe lookup.
func WithInspector(fn Inspector) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.inspect = fn
		}
	}
}

// WithExecutor replaces the executor used to run ffmpeg.
func WithExecutor(exec asr.Executor) Option {
	return func(e *Extractor) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// NewExtractor builds an extractor from the transcription settings. The
// configured transcription language doubles as the preferred subtitle
// language.
func NewExtractor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Extractor {
	ffprobeBinary := cfg.Transcription.FFprobeBinary
	preferred := langpkg.ToISO2(cfg.Transcription.Language)
	if preferred == "" {
		preferred = "zh"
	}
	e := &Extractor{
		ffmpeg:    cfg.Transcription.FFmpegBinary,
		preferred: preferred,
		exec:      asr.CommandExecutor{},
		logger:    logging.NewComponentLogger(logger, "subtitles"),
		inspect: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, ffprobeBinary, path)
		},
	}
	if strings.TrimSpace(e.ffmpeg) == "" {
		e.ffmpeg = "ffmpeg"
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of the best subtitle stream in videoPath. A video
// without text subtitles yields an empty Result and no error. Scratch files
// are written into workDir.
func (e *Extractor) Extract(ctx context.Context, videoPath, workDir string) (Result, error) {
	logger := logging.WithContext(ctx, e.logger)

	probe, err := e.inspect(ctx, videoPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "subtitles", "ffprobe", videoPath, err)
	}
	candidates := orderStreams(probe.SubtitleStreams(), e.preferred)
	if len(candidates) == 0 {
		logger.Debug("no text subtitle streams", logging.String("path", videoPath))
		return Result{}, nil
	}

	var lastErr error
	for _, stream := range candidates {
		res, err := e.extractStream(ctx, videoPath, workDir, stream)
		if err != nil {
			lastErr = err
			logger.Warn("subtitle stream extraction failed",
				logging.Int("stream_index", stream.Index),
				logging.String("codec", stream.CodecName),
				logging.Error(err),
				logging.String(logging.FieldEventType, "subtitle_stream_failed"),
				logging.String(logging.FieldErrorHint, "falling back to the next subtitle stream"),
				logging.String(logging.FieldImpact, "stream skipped"),
			)
			continue
		}
		if strings.TrimSpace(res.Text) == "" {
			continue
		}
		logger.Info("subtitle text extracted",
			logging.Int("stream_index", res.StreamIndex),
			logging.String("language", res.Language),
			logging.Int("cues", res.Cues),
			logging.String(logging.FieldEventType, "subtitle_extracted"),
		)
		return res, nil
	}
	if lastErr != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "subtitles", "ffmpeg", "no subtitle stream could be converted", lastErr)
	}
	return Result{}, nil
}

func (e *Extractor) extractStream(ctx context.Context, videoPath, workDir string, stream ffprobe.Stream) (Result, error) {
	dest := filepath.Join(workDir, fmt.Sprintf("subtitle_%d.srt", stream.Index))
	defer os.Remove(dest)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-map", fmt.Sprintf("0:%d", stream.Index),
		"-f", "srt",
		dest,
	}
	if err := e.exec.Run(ctx, e.ffmpeg, args, nil, nil); err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return Result{}, fmt.Errorf("read srt: %w", err)
	}
	text := ParseSRT(data)
	return Result{Text: text.Content, StreamIndex: stream.Index, Language: stream.Language(), Cues: text.Cues}, nil
}

// orderStreams drops bitmap formats and puts preferred-language streams
// first, default-disposition streams next, keeping container order otherwise.
func orderStreams(streams []ffprobe.Stream, preferred string) []ffprobe.Stream {
	rank := func(s ffprobe.Stream) int {
		r := 0
		if langpkg.Matches(s.Language(), preferred) {
			r -= 2
		}
		if s.IsDefault() {
			r--
		}
		return r
	}
	out := make([]ffprobe.Stream, 0, len(streams))
	for _, s := range streams {
		if _, bitmap := bitmapCodecs[strings.ToLower(s.CodecName)]; bitmap {
			continue
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b ffprobe.Stream) int { return rank(a) - rank(b) })
	return out
}

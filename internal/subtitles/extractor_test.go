package subtitles_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"videoinsight/internal/config"
	"videoinsight/internal/logging"
	"videoinsight/internal/media/ffprobe"
	"videoinsight/internal/subtitles"
)

// srtExecutor writes canned SRT per mapped stream to the ffmpeg destination.
type srtExecutor struct {
	byStream map[string]string
	fail     map[string]bool
	mapped   []string
}

func (e *srtExecutor) Run(_ context.Context, _ string, args []string, _ []string, _ func(string)) error {
	var stream string
	for i, arg := range args {
		if arg == "-map" && i+1 < len(args) {
			stream = args[i+1]
		}
	}
	e.mapped = append(e.mapped, stream)
	if e.fail[stream] {
		return errors.New("Subtitle encoding failed")
	}
	return os.WriteFile(args[len(args)-1], []byte(e.byStream[stream]), 0o644)
}

func inspector(streams ...ffprobe.Stream) subtitles.Inspector {
	return func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: streams}, nil
	}
}

func sub(index int, codec, lang string) ffprobe.Stream {
	return ffprobe.Stream{Index: index, CodecType: "subtitle", CodecName: codec, Tags: map[string]string{"language": lang}}
}

func srt(lines ...string) string {
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d\n00:00:0%d,000 --> 00:00:0%d,500\n%s\n\n", i+1, i, i, line)
	}
	return b.String()
}

func newExtractor(t *testing.T, exec *srtExecutor, inspect subtitles.Inspector) *subtitles.Extractor {
	t.Helper()
	cfg := config.Default()
	return subtitles.NewExtractor(&cfg, logging.NewNop(), subtitles.WithExecutor(exec), subtitles.WithInspector(inspect))
}

func TestExtractPrefersChineseStream(t *testing.T) {
	exec := &srtExecutor{byStream: map[string]string{
		"0:2": srt("English line"),
		"0:3": srt("字幕A", "字幕B"),
	}}
	ex := newExtractor(t, exec, inspector(
		ffprobe.Stream{Index: 0, CodecType: "video"},
		sub(2, "subrip", "eng"),
		sub(3, "mov_text", "chi"),
	))
	work := t.TempDir()
	res, err := ex.Extract(context.Background(), "/videos/a.mkv", work)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "字幕A 字幕B" || res.StreamIndex != 3 || res.Language != "zh" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(exec.mapped) != 1 || exec.mapped[0] != "0:3" {
		t.Fatalf("expected only the chinese stream converted, got %v", exec.mapped)
	}
	if entries, _ := os.ReadDir(work); len(entries) != 0 {
		t.Fatalf("expected scratch srt removed, found %d files", len(entries))
	}
}

func TestExtractNoSubtitleStreams(t *testing.T) {
	exec := &srtExecutor{}
	ex := newExtractor(t, exec, inspector(ffprobe.Stream{Index: 0, CodecType: "video"}, sub(1, "hdmv_pgs_subtitle", "chi")))
	res, err := ex.Extract(context.Background(), "/videos/a.mkv", t.TempDir())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "" {
		t.Fatalf("expected empty text, got %q", res.Text)
	}
	if len(exec.mapped) != 0 {
		t.Fatalf("bitmap subtitles must not be converted: %v", exec.mapped)
	}
}

func TestExtractFallsBackToNextStream(t *testing.T) {
	exec := &srtExecutor{
		byStream: map[string]string{"0:4": srt("backup text")},
		fail:     map[string]bool{"0:3": true},
	}
	ex := newExtractor(t, exec, inspector(sub(3, "ass", "zho"), sub(4, "subrip", "eng")))
	res, err := ex.Extract(context.Background(), "/videos/a.mkv", t.TempDir())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "backup text" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestExtractReportsWhenAllStreamsFail(t *testing.T) {
	exec := &srtExecutor{fail: map[string]bool{"0:3": true}}
	ex := newExtractor(t, exec, inspector(sub(3, "ass", "zho")))
	if _, err := ex.Extract(context.Background(), "/videos/a.mkv", t.TempDir()); err == nil {
		t.Fatal("expected error when every stream fails")
	}
}

func TestExtractProbeFailure(t *testing.T) {
	ex := newExtractor(t, &srtExecutor{}, func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("Invalid data found when processing input")
	})
	if _, err := ex.Extract(context.Background(), "/videos/a.mkv", t.TempDir()); err == nil {
		t.Fatal("expected probe error")
	}
}

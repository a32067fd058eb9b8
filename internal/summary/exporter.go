package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"videoinsight/internal/language"
	"videoinsight/internal/services"
	"videoinsight/internal/textutil"
)

const (
	FormatMarkdown = "markdown"
	FormatDocx     = "docx"

	defaultTitle = "视频摘要"
	unknown      = "未知"
	footer       = "*本摘要由 Video Insight 自动生成*"
)

// Metadata describes the video a summary belongs to.
type Metadata struct {
	Title    string
	Source   string
	Author   string
	Platform string
}

// Exporter writes summaries into an output directory.
type Exporter struct {
	dir    string
	format string
	now    func() time.Time
	newID  func() string
}

// ExporterOption customizes an Exporter.
type ExporterOption func(*Exporter)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDSource overrides the filename suffix generator.
func WithIDSource(fn func() string) ExporterOption {
	return func(e *Exporter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewExporter targets dir in the given format (markdown when empty).
func NewExporter(dir, format string, opts ...ExporterOption) *Exporter {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatMarkdown
	}
	e := &Exporter{
		dir:    dir,
		format: format,
		now:    time.Now,
		newID:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes summary and returns the file path.
func (e *Exporter) Export(summary string, meta Metadata) (string, error) {
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = defaultTitle
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "export", "create output dir", e.dir, err)
	}
	ext := ".md"
	if e.format == FormatDocx {
		ext = ".docx"
	}
	path := filepath.Join(e.dir, e.FileName(meta.Title, ext))

	var err error
	switch e.format {
	case FormatDocx:
		err = writeDocx(path, meta.Title, e.body(summary, meta))
	case FormatMarkdown:
		err = os.WriteFile(path, []byte(e.Markdown(summary, meta)), 0o644)
	default:
		return "", services.Wrap(services.ErrConfiguration, "export", "select format", e.format, nil)
	}
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "export", "write "+e.format, path, err)
	}
	return path, nil
}

// FileName returns "<sanitized title>_<8 hex>" plus ext.
func (e *Exporter) FileName(title, ext string) string {
	safe := textutil.SanitizeFileName(title)
	if safe == "" {
		safe = defaultTitle
	}
	return fmt.Sprintf("%s_%s%s", safe, e.newID(), ext)
}

// Markdown renders the full document with YAML front matter.
func (e *Exporter) Markdown(summary string, meta Metadata) string {
	now := e.now()
	lang, _ := language.Detect(summary)
	lines := []string{
		"---",
		fmt.Sprintf("title: %q", meta.Title),
		fmt.Sprintf("source: %q", meta.Source),
		fmt.Sprintf("author: %q", orUnknown(meta.Author)),
		fmt.Sprintf("platform: %q", meta.Platform),
	}
	if lang != "" {
		lines = append(lines, fmt.Sprintf("language: %q", lang))
	}
	lines = append(lines,
		fmt.Sprintf("processed_at: %q", now.Format(time.RFC3339)),
		"---",
		"",
		"# "+meta.Title,
		"",
	)
	lines = append(lines, e.body(summary, meta)...)
	return strings.Join(lines, "\n") + "\n"
}

func (e *Exporter) body(summary string, meta Metadata) []string {
	return []string{
		"## 📊 信息概览",
		"",
		"- **来源平台**: " + orUnknown(meta.Platform),
		"- **作者**: " + orUnknown(meta.Author),
		"- **处理时间**: " + e.now().Format("2006-01-02 15:04:05"),
		"- **原文链接**: " + meta.Source,
		"",
		"---",
		"",
		"## 📝 内容摘要",
		"",
		strings.TrimSpace(summary),
		"",
		"---",
		"",
		footer,
	}
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return unknown
	}
	return value
}

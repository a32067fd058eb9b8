package pipeline

import (
	"context"

	"videoinsight/internal/broadcast"
	"videoinsight/internal/source"
	"videoinsight/internal/subtitles"
	"videoinsight/internal/task"
	"videoinsight/internal/transcription"
)

// SourceProvider resolves a task into a local video file.
type SourceProvider interface {
	Acquire(ctx context.Context, t task.Task, workDir string, progress source.ProgressFunc) (source.Acquired, error)
}

// SubtitleExtractor pulls embedded subtitle text. An empty result with a nil
// error means the video has no usable subtitles.
type SubtitleExtractor interface {
	Extract(ctx context.Context, videoPath, workDir string) (subtitles.Result, error)
}

// Transcriber is the speech recognition backend.
type Transcriber interface {
	EnsureLoaded(ctx context.Context) error
	TranscribeVideo(ctx context.Context, videoPath, language string, progress func(int)) (transcription.Result, error)
}

// Publisher receives task events. broadcast.Hub satisfies it.
type Publisher interface {
	Publish(msg broadcast.Message) bool
}

// ProgressCallback observes every progress event of a run.
type ProgressCallback func(status task.Status, progress int, message string)

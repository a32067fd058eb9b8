package asr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// SampleRate is the audio sample rate both backends expect.
const SampleRate = 16000

// ExtractArgs builds the ffmpeg arguments that decode the first audio stream
// of source into a mono 16 kHz PCM WAV at dest.
func ExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}

// ExtractAudio runs ffmpeg through exec and verifies a non-empty WAV was
// written.
func ExtractAudio(ctx context.Context, exec Executor, ffmpegBinary, source, dest string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return errors.New("extract audio: source and destination required")
	}
	if exec == nil {
		exec = CommandExecutor{}
	}
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if err := exec.Run(ctx, ffmpegBinary, ExtractArgs(source, dest), nil, nil); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg extract: empty audio output")
	}
	return nil
}

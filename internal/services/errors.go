package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrTranscription     = errors.New("transcription error")
	ErrModelLoad         = errors.New("model load error")
	ErrEmptyTranscript   = errors.New("empty transcript")
	ErrBroadcastDelivery = errors.New("broadcast delivery error")
	ErrExternalTool      = errors.New("external tool error")
	ErrConfiguration     = errors.New("configuration error")
	ErrValidation        = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the failure class of err for logs and event payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, ErrModelLoad):
		return "model_load"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrBroadcastDelivery):
		return "broadcast_delivery"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "internal"
	}
}

// Hint returns an operator-facing next step for the failure class of err.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		return "check the file path or URL and network connectivity"
	case errors.Is(err, ErrEmptyTranscript):
		return "the video may have no speech; try another language setting"
	case errors.Is(err, ErrModelLoad):
		return "check model cache permissions and network access for model download"
	case errors.Is(err, ErrTranscription):
		return "check ffmpeg and the speech recognition binary"
	case errors.Is(err, ErrConfiguration):
		return "review config.toml"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

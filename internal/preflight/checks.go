package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"videoinsight/internal/config"
	"videoinsight/internal/deps"
	"videoinsight/internal/services/llm"
	"videoinsight/internal/transcription"
)

// CheckSummaryLLM verifies that the summary provider is reachable and the key
// is valid. It uses a 30-second timeout and a single attempt (no retries).
func CheckSummaryLLM(ctx context.Context, cfg config.Summary, opts ...llm.Option) Result {
	const name = "Summary LLM"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	llmCfg := llm.ConfigFromSummary(cfg)
	llmCfg.MaxTokens = 16
	client, err := llm.NewFromConfig(checkCtx, llmCfg, append(opts, llm.WithRetryMaxAttempts(1))...)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if _, err := client.Complete(checkCtx, llm.Request{User: "Reply with OK."}); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%s)", client.Name(), cfg.Model)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// SystemRequirements lists the binaries needed for the selected backend
// variant. The backend that is not selected is reported as optional.
func SystemRequirements(cfg *config.Config, variant transcription.Variant) []deps.Requirement {
	t := cfg.Transcription
	return []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     t.FFmpegBinary,
			Description: "Required for audio and subtitle extraction",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobe(t.FFmpegBinary, t.FFprobeBinary),
			Description: "Required for stream inspection",
		},
		{
			Name:        "whisper.cpp",
			Command:     t.WhisperCPPBinary,
			Description: "CPU speech recognition",
			Optional:    variant != transcription.VariantWhisperCPP,
		},
		{
			Name:        "uvx",
			Command:     t.UVXBinary,
			Description: "Runs WhisperX for GPU speech recognition",
			Optional:    variant != transcription.VariantWhisperX,
		},
	}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(cfg *config.Config, variant transcription.Variant) []deps.Status {
	return deps.CheckBinaries(SystemRequirements(cfg, variant))
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}

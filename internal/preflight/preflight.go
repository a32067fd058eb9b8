package preflight

import (
	"context"
	"strings"

	"videoinsight/internal/config"
	"videoinsight/internal/services/llm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config, opts ...llm.Option) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if dir := strings.TrimSpace(cfg.Paths.TempDir); dir != "" {
		results = append(results, CheckDirectoryAccess("Temp directory", dir))
	}
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckDirectoryAccess("Model cache", cfg.Paths.ModelCacheDir))

	if cfg.Summary.Enabled {
		results = append(results, CheckSummaryLLM(ctx, cfg.Summary, opts...))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Package logging assembles structured slog loggers and formatting helpers used
// across Video Insight.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can automatically
// tag log lines with task IDs, stages, and correlation IDs. A bounded
// StreamHub keeps recent records for the log tail API, TeeLogger mirrors a
// task's records into its own file, and ProgressSampler throttles progress
// lines. NewNop provides a discard logger for tests and wiring code.
package logging

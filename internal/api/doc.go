// Package api defines wire-format types and converters for the HTTP API.
// It translates internal models (history runs, backend snapshots, submitted
// tasks) into transport-friendly DTOs that the browser client and the CLI
// render without coupling to internal types.
//
// # Key Types
//
// SubmitRequest/SubmitResponse: task submission over POST /api/tasks.
//
// DaemonStatus: running state, backend snapshot, event hub counters and
// dependency checks.
//
// HistoryEntry/HistoryResponse: finished and in-flight runs.
//
// LogStreamResponse: structured log payloads for live tailing.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers, matching the event
// envelope. Timestamps use RFC3339 with milliseconds.
package api

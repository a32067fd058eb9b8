// Package daemon coordinates the long-running Video Insight process.
//
// It wires configuration, the broadcast hub, the transcription backend, the
// pipeline orchestrator, run history and the optional summary handoff into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Submitted tasks run on their own goroutine; the daemon tracks which task
// ids are in flight and rejects duplicates.
//
// Keep orchestration logic here: pipeline stages live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon

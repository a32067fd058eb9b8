// Package logs reads daemon logs for the CLI.
//
// StreamClient pages through the daemon's in-memory log stream on /api/logs,
// optionally filtered to one task and optionally long-polling for new events.
// When the daemon is down, LastLines reads the tail of the log file instead.
package logs

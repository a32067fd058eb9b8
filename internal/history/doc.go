// Package history keeps a SQLite record of processed tasks.
//
// Recorder subscribes to the broadcast hub and folds progress, task_update
// and transcript_ready events into one row per task. The store is listing
// only: nothing reads it back to drive processing, and a missing or broken
// database never blocks a run.
package history

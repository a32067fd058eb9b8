// Package pipeline turns one task into text.
//
// Orchestrator.Process runs three stages in order: acquire the video, extract
// text (embedded subtitles first, speech recognition only when subtitles are
// missing or empty) and complete. Every stage reports progress through the
// broadcast hub; progress never moves backwards and a successful run ends at
// exactly 100. The task scratch directory is removed on every exit path,
// including panics in collaborators.
//
// Runs are detached from caller cancellation: a dropped HTTP request or a
// closed terminal does not abort a task halfway.
package pipeline

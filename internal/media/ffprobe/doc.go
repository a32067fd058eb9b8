// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Inspect executes ffprobe; Parse decodes a payload captured elsewhere.
// Helper methods on Result list subtitle streams and report duration.
package ffprobe

// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (source, transcription, model load, empty transcript,
//     broadcast delivery) without string matching.
//
// Backend integrations live in subpackages: whispercpp and whisperx drive the
// two speech recognition engines, llm talks to chat completion providers.
package services

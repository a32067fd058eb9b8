// Package transcription owns the process-wide speech recognition backend.
//
// A Service picks one of two backends from a DeviceProfile (whisper.cpp on
// CPU or WhisperX on CUDA), loads it once behind a mutex and turns a video
// file into text. Segment timestamps reported by the backend drive a
// monotonic 10..99 percent progress value; 100 is reported only after a
// successful return.
//
// The service moves through unloaded, loading and ready. A failed load
// returns to unloaded so the next call retries.
package transcription

// Package whisperx runs the accelerated speech recognition backend: WhisperX
// on CUDA launched through uvx with float16 compute.
//
// Verbose output is parsed line by line so callers see segments as they are
// decoded. Model weights live under the configured cache via HF_HOME.
package whisperx

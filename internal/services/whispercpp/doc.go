// Package whispercpp runs the CPU speech recognition backend: the whisper.cpp
// command line tool with a quantized ggml model.
//
// Load downloads the model file into the cache directory when it is missing.
// Transcribe streams the segment lines the CLI prints to stdout.
package whispercpp

// Package asr holds the pieces shared by the speech recognition backends:
// decoded segments, the streaming command executor and ffmpeg audio
// extraction into the 16 kHz mono WAV both backends consume.
package asr

// Package deps checks that the external binaries the pipeline shells out to
// (ffmpeg, ffprobe, whisper.cpp, uvx) can be found.
package deps

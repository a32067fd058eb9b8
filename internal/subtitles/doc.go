// Package subtitles pulls embedded text subtitles out of a video.
//
// The extractor lists subtitle streams with ffprobe, prefers a stream in the
// configured language (Chinese by default), converts it to SRT with ffmpeg and
// flattens the cues into one line of plain text. Bitmap subtitle formats are
// skipped because they carry no text.
package subtitles

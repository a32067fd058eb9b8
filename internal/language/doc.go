// Package language provides unified language code normalization and mapping.
//
// Configured transcription languages, subtitle stream tags and detected
// transcript languages all pass through here so they compare as ISO 639-1.
// BCP 47 tags are resolved with golang.org/x/text/language; transcript text
// is classified with lingua.
package language

// Package summary turns finished transcripts into notes on disk.
//
// Summarizer asks a chat model to restructure a transcript according to a
// template prompt. Exporter writes the result as Markdown with front matter
// or as a .docx document. Handoff glues both to the broadcast hub: it reacts
// to transcript_ready events and publishes a task_update carrying the output
// path once the file is written.
package summary

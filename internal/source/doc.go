// Package source turns a task reference into a readable local video file.
//
// FILE tasks are validated in place. URL tasks go through a Registry of
// Downloaders where the first downloader that accepts the URL wins; the
// result lands in the task's scratch directory, which the caller removes.
package source

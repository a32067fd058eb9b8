// Package task defines the unit of work processed by the pipeline: the Task
// itself, its forward-only status lifecycle, the progress and log events it
// emits, and the Result returned when processing ends.
package task

// Package broadcast fans task events out to any number of observers.
//
// Producers call Publish, which enqueues without blocking; a single Run loop
// drains the queue and hands each message to Broadcast, so every observer sees
// messages in publish order. Broadcast snapshots the observer set, delivers to
// each, and removes the ones that failed only after the pass, so one broken
// connection never starves the rest. SendToOne targets a single observer and
// applies the same removal rule.
//
// Message is the JSON envelope shared with WebSocket clients; its Type field
// selects between progress, task_log, task_update, transcript_ready, ping,
// pong, status and error.
package broadcast

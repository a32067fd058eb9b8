// Package notifications pushes task outcomes to ntfy.
//
// Notifier reacts to broadcast events: a finished transcript, an exported
// summary and a failed task each produce one push. Sends happen off the
// dispatch loop so a slow ntfy server never delays other observers. With no
// topic configured NewService returns a no-op.
package notifications

// Command videoinsight turns local videos and video URLs into text.
//
// `videoinsight serve` runs the daemon with its HTTP and WebSocket API.
// `videoinsight process` runs one task in the foreground without a daemon,
// and `videoinsight watch` processes every video dropped into a directory.
// The remaining commands inspect configuration, templates, run history and
// daemon status.
package main

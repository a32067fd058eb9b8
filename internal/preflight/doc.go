// Package preflight provides readiness checks for the binaries, directories
// and services Video Insight depends on.
//
// These checks run in two contexts:
//   - The daemon and the CLI "status" command report them to the operator.
//   - The CLI "process" command runs RunAll before a job so a missing ffmpeg
//     fails fast instead of after a long download.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight

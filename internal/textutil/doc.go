// Package textutil provides small string helpers shared across packages:
// filesystem-safe names for exported documents and bounded previews of long
// values for log lines.
package textutil

package subtitles

import (
	"bytes"
	"strings"
)

// Text is plain text recovered from an SRT document.
type Text struct {
	Content    string
	Cues       int
	RemovedAds int
}

// ParseSRT flattens SRT cues into one space-separated string. Index and
// timestamp lines are dropped, markup is stripped and advertisement cues are
// removed.
func ParseSRT(raw []byte) Text {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	normalized := strings.ReplaceAll(string(raw), "\r\n", "\n")
	var (
		out   Text
		parts []string
	)
	for _, block := range splitBlocks(normalized) {
		lines := subtitleTextLines(strings.Split(block, "\n"))
		if len(lines) == 0 {
			continue
		}
		if blockIsAdvertisement(lines) {
			out.RemovedAds++
			continue
		}
		out.Cues++
		parts = append(parts, lines...)
	}
	out.Content = strings.Join(parts, " ")
	return out
}

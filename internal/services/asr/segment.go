package asr

import (
	"strconv"
	"strings"
	"time"
)

// Segment is one decoded span of speech.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// SegmentSink receives segments as the backend decodes them.
type SegmentSink func(Segment)

// JoinSegments concatenates non-empty segment texts with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// ParseClock parses "hh:mm:ss.mmm", "mm:ss.mmm" or plain seconds ("12.5").
// Commas are accepted as the decimal separator.
func ParseClock(value string) (time.Duration, bool) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if value == "" {
		return 0, false
	}
	fields := strings.Split(value, ":")
	if len(fields) > 3 {
		return 0, false
	}
	var total float64
	for _, field := range fields {
		n, err := strconv.ParseFloat(field, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return time.Duration(total * float64(time.Second)), true
}

// ParseBracketed splits "[start --> end] text" into its parts. The prefix
// before the opening bracket must already be stripped.
func ParseBracketed(line string) (Segment, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return Segment{}, false
	}
	closing := strings.Index(line, "]")
	if closing < 0 {
		return Segment{}, false
	}
	span := line[1:closing]
	startRaw, endRaw, ok := strings.Cut(span, "-->")
	if !ok {
		return Segment{}, false
	}
	start, ok := ParseClock(startRaw)
	if !ok {
		return Segment{}, false
	}
	end, ok := ParseClock(endRaw)
	if !ok || end < start {
		return Segment{}, false
	}
	return Segment{Start: start, End: end, Text: strings.TrimSpace(line[closing+1:])}, true
}

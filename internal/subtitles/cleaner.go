package subtitles

import (
	"regexp"
	"strconv"
	"strings"
)

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? and corrected`),
	regexp.MustCompile(`(?i)advertise (your|yours?) product`),
	regexp.MustCompile(`(?i)http(s)?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`(?i)\bsubscene\b`),
	regexp.MustCompile(`(?i)\byts\b`),
	regexp.MustCompile(`(?i)\byify\b`),
	regexp.MustCompile(`字幕组`),
}

var (
	markupTag   = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	assOverride = regexp.MustCompile(`\{\\[^}]*\}`)
	blankLine   = regexp.MustCompile(`\n\s*\n`)
)

func splitBlocks(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	return blankLine.Split(trimmed, -1)
}

func blockIsAdvertisement(textLines []string) bool {
	payload := strings.TrimSpace(strings.ToLower(strings.Join(textLines, " ")))
	if payload == "" {
		return false
	}
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}

// subtitleTextLines drops the cue index and timing lines and strips markup.
func subtitleTextLines(lines []string) []string {
	text := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isNumeric(trimmed) || strings.Contains(trimmed, "-->") {
			continue
		}
		trimmed = assOverride.ReplaceAllString(trimmed, "")
		trimmed = strings.TrimSpace(markupTag.ReplaceAllString(trimmed, ""))
		if trimmed != "" {
			text = append(text, trimmed)
		}
	}
	return text
}

func isNumeric(value string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(value))
	return err == nil
}

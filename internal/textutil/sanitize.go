package textutil

import (
	"strings"
	"unicode"
)

// maxFileNameRunes keeps export names well under common 255-byte limits even
// when every rune is a 3-byte CJK character.
const maxFileNameRunes = 80

// maxTokenLen bounds tokens embedded in scratch directory names.
const maxTokenLen = 48

// SanitizeFileName turns a video title into a file name. Path separators,
// colons and asterisks become dashes; quotes, wildcards, redirection
// characters and control runes are dropped; whitespace runs collapse to one
// space. The result is trimmed of surrounding spaces and dots.
func SanitizeFileName(name string) string {
	var b strings.Builder
	space := false
	count := 0
	for _, r := range strings.TrimSpace(name) {
		if count >= maxFileNameRunes {
			break
		}
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			r = '-'
		case r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			continue
		case unicode.IsSpace(r):
			if space {
				continue
			}
			space = true
			b.WriteRune(' ')
			count++
			continue
		case unicode.IsControl(r):
			continue
		}
		space = false
		b.WriteRune(r)
		count++
	}
	return strings.Trim(b.String(), " .")
}

// SanitizeToken lowercases an identifier and keeps only ASCII letters, digits,
// dashes and underscores. Other runs become a single underscore. Empty results
// become "unknown".
func SanitizeToken(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		if b.Len() >= maxTokenLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		default:
			if s := b.String(); s != "" && !strings.HasSuffix(s, "_") {
				b.WriteByte('_')
			}
		}
	}
	if out := strings.Trim(b.String(), "_-"); out != "" {
		return out
	}
	return "unknown"
}

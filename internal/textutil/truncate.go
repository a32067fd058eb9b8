package textutil

// Truncate shortens value to at most limit runes, appending an ellipsis when
// it cut anything.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "…"
}

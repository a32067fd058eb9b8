package language

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// minDetectRunes is the shortest text worth classifying.
const minDetectRunes = 8

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func loadDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.Chinese,
				lingua.English,
				lingua.Japanese,
				lingua.Korean,
				lingua.French,
				lingua.German,
				lingua.Spanish,
				lingua.Italian,
				lingua.Portuguese,
				lingua.Russian,
				lingua.Arabic,
				lingua.Hindi,
				lingua.Dutch,
				lingua.Vietnamese,
				lingua.Thai,
			).
			Build()
	})
	return detector
}

// Detect classifies text and returns its ISO 639-1 code. ok is false for
// short or ambiguous input.
func Detect(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minDetectRunes {
		return "", false
	}
	lang, ok := loadDetector().DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

package feeds

import (
	"fmt"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// LanguageTagger detects the language of item text among a fixed set
type LanguageTagger struct {
	detector lingua.LanguageDetector
	codes    map[lingua.Language]string
}

// NewLanguageTagger builds a detector for the given ISO 639-1 codes. lingua
// needs at least two candidate languages.
func NewLanguageTagger(isoCodes []string) (*LanguageTagger, error) {
	supported := getSupportedLanguages()

	languages := make([]lingua.Language, 0, len(isoCodes))
	codes := make(map[lingua.Language]string, len(isoCodes))
	for _, code := range isoCodes {
		lang, ok := isoToLingua(strings.ToLower(code), supported)
		if !ok {
			return nil, fmt.Errorf("unsupported language code %q", code)
		}
		languages = append(languages, lang)
		codes[lang] = supported[lang]
	}

	if len(languages) < 2 {
		return nil, fmt.Errorf("need at least two languages, got %d", len(languages))
	}

	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(languages...).
		WithMinimumRelativeDistance(0.1).
		Build()

	return &LanguageTagger{detector: detector, codes: codes}, nil
}

// Tag returns the ISO 639-1 code of the detected language or "" when the
// detector is not confident
func (t *LanguageTagger) Tag(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lang, ok := t.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return t.codes[lang]
}

func isoToLingua(code string, languages map[lingua.Language]string) (lingua.Language, bool) {
	for lang, isoCode := range languages {
		if isoCode == code {
			return lang, true
		}
	}
	return lingua.Unknown, false
}

func getSupportedLanguages() map[lingua.Language]string {
	languages := make(map[lingua.Language]string)
	for _, lang := range lingua.AllLanguages() {
		languages[lang] = strings.ToLower(lang.IsoCode639_1().String())
	}
	return languages
}

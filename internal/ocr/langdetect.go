package ocr

import (
	"unicode"
)

// Script tags returned by a Detector besides the target script's own tag.
const (
	LanguageLatin   = "latin"
	LanguageMixed   = "mixed"
	LanguageUnknown = "unknown"
)

// DominantShare is the share of classified letters one script needs to win.
const DominantShare = 0.7

// Detector guesses the script of a text by comparing Latin letters against
// one target non-Latin script. It is a coarse ratio test, not a language
// model.
type Detector struct {
	tag    string
	target *unicode.RangeTable
}

var targetScripts = map[string]*unicode.RangeTable{
	"cyrillic":   unicode.Cyrillic,
	"arabic":     unicode.Arabic,
	"greek":      unicode.Greek,
	"han":        unicode.Han,
	"hangul":     unicode.Hangul,
	"thai":       unicode.Thai,
	"devanagari": unicode.Devanagari,
	"hebrew":     unicode.Hebrew,
}

// NewDetector returns a detector for the named target script. Unknown
// names fall back to Cyrillic.
func NewDetector(script string) Detector {
	if rt, ok := targetScripts[script]; ok {
		return Detector{tag: script, target: rt}
	}
	return Detector{tag: "cyrillic", target: unicode.Cyrillic}
}

// DetectorForLanguages picks the target script from the first non-Latin
// language code in langs.
func DetectorForLanguages(langs []string) Detector {
	for _, l := range langs {
		if s := scriptOf(l); s != LanguageLatin {
			return NewDetector(s)
		}
	}
	return NewDetector("")
}

// Target returns the tag reported when the target script dominates.
func (d Detector) Target() string {
	return d.tag
}

// Detect returns LanguageLatin, the target tag, LanguageMixed, or
// LanguageUnknown when the text has no letters of either script.
func (d Detector) Detect(text string) string {
	var latin, target int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.Is(d.target, r) && unicode.IsLetter(r):
			target++
		}
	}
	total := latin + target
	if total == 0 {
		return LanguageUnknown
	}
	switch {
	case float64(latin)/float64(total) > DominantShare:
		return LanguageLatin
	case float64(target)/float64(total) > DominantShare:
		return d.tag
	default:
		return LanguageMixed
	}
}

// DetectLanguage runs the default Latin versus Cyrillic detector.
func DetectLanguage(text string) string {
	return NewDetector("cyrillic").Detect(text)
}

package ocr

import "strings"

type language struct {
	tesseract string
	script    string
}

var languages = map[string]language{
	"en": {"eng", LanguageLatin},
	"de": {"deu", LanguageLatin},
	"fr": {"fra", LanguageLatin},
	"es": {"spa", LanguageLatin},
	"it": {"ita", LanguageLatin},
	"pt": {"por", LanguageLatin},
	"nl": {"nld", LanguageLatin},
	"pl": {"pol", LanguageLatin},
	"tr": {"tur", LanguageLatin},
	"ru": {"rus", "cyrillic"},
	"uk": {"ukr", "cyrillic"},
	"be": {"bel", "cyrillic"},
	"bg": {"bul", "cyrillic"},
	"sr": {"srp", "cyrillic"},
	"kk": {"kaz", "cyrillic"},
	"ar": {"ara", "arabic"},
	"fa": {"fas", "arabic"},
	"el": {"ell", "greek"},
	"he": {"heb", "hebrew"},
	"zh": {"chi_sim", "han"},
	"ja": {"jpn", "han"},
	"ko": {"kor", "hangul"},
	"th": {"tha", "thai"},
	"hi": {"hin", "devanagari"},
}

// DefaultLanguages pairs one Latin-script and one non-Latin language.
var DefaultLanguages = []string{"en", "ru"}

// TesseractCodes maps ISO 639-1 codes to tesseract traineddata names,
// dropping duplicates. Codes that are already three letters long pass
// through unchanged.
func TesseractCodes(langs []string) []string {
	out := make([]string, 0, len(langs))
	seen := make(map[string]bool, len(langs))
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		code := l
		if lang, ok := languages[l]; ok {
			code = lang.tesseract
		}
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

func scriptOf(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if lang, ok := languages[code]; ok {
		return lang.script
	}
	for _, lang := range languages {
		if lang.tesseract == code {
			return lang.script
		}
	}
	return LanguageLatin
}

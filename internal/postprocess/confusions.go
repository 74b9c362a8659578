package postprocess

import (
	"strings"
	"unicode"
)

// rnWords maps words where "m" was read as "rn" to their spelling. Only
// whole words listed here are rewritten.
var rnWords = map[string]string{
	"arnount":      "amount",
	"cornpany":     "company",
	"custorner":    "customer",
	"docurnent":    "document",
	"frorn":        "from",
	"inforrnation": "information",
	"narne":        "name",
	"nurnber":      "number",
	"payrnent":     "payment",
	"rnonth":       "month",
	"sarne":        "same",
	"systern":      "system",
	"tirne":        "time",
	"terrn":        "term",
}

// fixConfusions rewrites each whitespace-delimited token independently.
func fixConfusions(text string) string {
	rs := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	start := -1
	for i, r := range rs {
		if unicode.IsSpace(r) {
			if start >= 0 {
				b.WriteString(fixToken(rs[start:i]))
				start = -1
			}
			b.WriteRune(r)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		b.WriteString(fixToken(rs[start:]))
	}
	return b.String()
}

// fixToken applies the confusion rules to the alphanumeric core of tok,
// leaving surrounding punctuation untouched.
func fixToken(tok []rune) string {
	lo, hi := 0, len(tok)
	for lo < hi && !isAlnum(tok[lo]) {
		lo++
	}
	for hi > lo && !isAlnum(tok[hi-1]) {
		hi--
	}
	if lo == hi {
		return string(tok)
	}
	core := append([]rune(nil), tok[lo:hi]...)
	core = fixDigitLookalikes(core)
	core = fixZeroInWord(core)
	core = fixRNWord(core)
	return string(tok[:lo]) + string(core) + string(tok[hi:])
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isDigitLookalike(r rune) bool {
	switch r {
	case 'O', 'o', 'l', 'I':
		return true
	}
	return false
}

func isNumericSeparator(r rune) bool {
	return strings.ContainsRune(".,:/-", r)
}

// fixDigitLookalikes turns O/o into 0 and l/I into 1 when they sit between
// digits inside an otherwise numeric token such as "1O5" or "12l4.5O0".
func fixDigitLookalikes(core []rune) []rune {
	hasDigit := false
	for _, r := range core {
		switch {
		case isASCIIDigit(r):
			hasDigit = true
		case isDigitLookalike(r), isNumericSeparator(r):
		default:
			return core
		}
	}
	if !hasDigit {
		return core
	}

	digitish := func(r rune) bool { return isASCIIDigit(r) || isDigitLookalike(r) }
	out := append([]rune(nil), core...)
	for i := 1; i < len(core)-1; i++ {
		if !isDigitLookalike(core[i]) || !digitish(core[i-1]) || !digitish(core[i+1]) {
			continue
		}
		if core[i] == 'O' || core[i] == 'o' {
			out[i] = '0'
		} else {
			out[i] = '1'
		}
	}
	return out
}

// fixZeroInWord turns a 0 flanked by letters into O when the word has no
// other digits ("B0OK" but not "A0B1").
func fixZeroInWord(core []rune) []rune {
	found := false
	for i, r := range core {
		if !unicode.IsDigit(r) {
			continue
		}
		if r != '0' || i == 0 || i == len(core)-1 ||
			!unicode.IsLetter(core[i-1]) || !unicode.IsLetter(core[i+1]) {
			return core
		}
		found = true
	}
	if !found {
		return core
	}

	out := append([]rune(nil), core...)
	for i, r := range core {
		if r != '0' {
			continue
		}
		if unicode.IsLower(core[i-1]) && unicode.IsLower(core[i+1]) {
			out[i] = 'o'
		} else {
			out[i] = 'O'
		}
	}
	return out
}

func fixRNWord(core []rune) []rune {
	word := string(core)
	fixed, ok := rnWords[strings.ToLower(word)]
	if !ok {
		return core
	}
	switch {
	case len(core) > 1 && word == strings.ToUpper(word):
		fixed = strings.ToUpper(fixed)
	case unicode.IsUpper(core[0]):
		fixed = strings.ToUpper(fixed[:1]) + fixed[1:]
	}
	return []rune(fixed)
}

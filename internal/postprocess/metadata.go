package postprocess

import "regexp"

var (
	datePattern   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}[./]\d{1,2}[./]\d{2,4})\b`)
	amountPattern = regexp.MustCompile(`(?:[$€£₽]\s?\d[\d,. ]*\d|\b\d[\d,.]*\d?\s?(?:USD|EUR|GBP|RUB)\b)`)
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
)

// Hints are structured values spotted in cleaned text. They are suggestions
// for downstream indexing, not validated fields.
type Hints struct {
	Dates   []string `json:"dates,omitempty"`
	Amounts []string `json:"amounts,omitempty"`
	Emails  []string `json:"emails,omitempty"`
}

// Empty reports whether no hint was found.
func (h Hints) Empty() bool {
	return len(h.Dates) == 0 && len(h.Amounts) == 0 && len(h.Emails) == 0
}

// ExtractMetadata collects dates, monetary amounts and e-mail addresses in
// order of appearance, without duplicates.
func (p *PostProcessor) ExtractMetadata(text string) Hints {
	return Hints{
		Dates:   uniqueMatches(datePattern, text),
		Amounts: uniqueMatches(amountPattern, text),
		Emails:  uniqueMatches(emailPattern, text),
	}
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range re.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

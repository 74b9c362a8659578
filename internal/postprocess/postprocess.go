// Package postprocess normalises recognised text and scores whether a human
// should review it.
package postprocess

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultReviewThreshold is the score below which text needs review.
	DefaultReviewThreshold = 0.8
	// DefaultSpecialCharRatio is the share of non-alphanumeric, non-space
	// runes above which text is penalised.
	DefaultSpecialCharRatio = 0.3
	// DefaultShortTextLength is the rune count below which text is penalised.
	DefaultShortTextLength = 50
	// DefaultRepeatRun is the length of an identical-rune run that is penalised.
	DefaultRepeatRun = 5

	shortTextPenalty   = 0.9
	specialCharPenalty = 0.8
	repeatPenalty      = 0.9

	maxCleanPasses = 5
)

// Issue tags reported by CalculateQuality.
const (
	IssueShortText     = "very short text"
	IssueSpecialChars  = "too many special characters"
	IssueRepeatedChars = "repeated characters"
)

// Config holds the post-processing thresholds.
type Config struct {
	ReviewThreshold  float64
	SpecialCharRatio float64
	ShortTextLength  int
	RepeatRun        int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		ReviewThreshold:  DefaultReviewThreshold,
		SpecialCharRatio: DefaultSpecialCharRatio,
		ShortTextLength:  DefaultShortTextLength,
		RepeatRun:        DefaultRepeatRun,
	}
}

// Metrics is the review decision for one piece of text.
type Metrics struct {
	Score       float64  `json:"score"`
	NeedsReview bool     `json:"needs_review"`
	Issues      []string `json:"issues"`
}

// PostProcessor cleans text and scores it.
type PostProcessor struct {
	cfg Config
}

// New creates a PostProcessor. Zero fields take their defaults.
func New(cfg Config) *PostProcessor {
	d := DefaultConfig()
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = d.ReviewThreshold
	}
	if cfg.SpecialCharRatio <= 0 {
		cfg.SpecialCharRatio = d.SpecialCharRatio
	}
	if cfg.ShortTextLength <= 0 {
		cfg.ShortTextLength = d.ShortTextLength
	}
	if cfg.RepeatRun <= 1 {
		cfg.RepeatRun = d.RepeatRun
	}
	return &PostProcessor{cfg: cfg}
}

// Clean normalises Unicode composition, whitespace and punctuation spacing,
// and repairs common recognition confusions inside words. Clean is
// idempotent: it repeats its passes until the text stops changing.
func (p *PostProcessor) Clean(text string) string {
	out := text
	for range maxCleanPasses {
		next := cleanPass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func cleanPass(text string) string {
	text = norm.NFC.String(text)
	text = fixConfusions(text)
	text = fixPunctuationSpacing(text)
	return normalizeWhitespace(text)
}

// normalizeWhitespace collapses horizontal whitespace runs, trims every line,
// keeps at most one blank line between paragraphs and trims the result.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, isHorizontalSpace), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && unicode.IsSpace(r)
}

// fixPunctuationSpacing removes spaces before closing punctuation and adds a
// space after it when a letter follows directly. Digits after a separator
// are left alone so "3,5" and "12:30" survive.
func fixPunctuationSpacing(text string) string {
	rs := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if isHorizontalSpace(r) {
			j := i
			for j < len(rs) && isHorizontalSpace(rs[j]) {
				j++
			}
			if j < len(rs) && isClosingPunct(rs[j]) {
				i = j - 1
				continue
			}
		}
		b.WriteRune(r)
		if i+1 >= len(rs) || !unicode.IsLetter(rs[i+1]) {
			continue
		}
		switch r {
		case ',', ';', '!', '?':
			b.WriteRune(' ')
		case ':':
			if i > 0 && unicode.IsLetter(rs[i-1]) {
				b.WriteRune(' ')
			}
		case '.':
			if i > 0 && unicode.IsLower(rs[i-1]) && unicode.IsUpper(rs[i+1]) {
				b.WriteRune(' ')
			}
		}
	}
	return b.String()
}

func isClosingPunct(r rune) bool {
	switch r {
	case ',', '.', ';', ':', '!', '?':
		return true
	}
	return false
}

// CalculateQuality starts from the recognition confidence and applies
// independent multiplicative penalties. Any flagged issue forces review.
func (p *PostProcessor) CalculateQuality(text string, confidence float64) Metrics {
	score := confidence
	issues := []string{}

	total := utf8.RuneCountInString(text)
	if total < p.cfg.ShortTextLength {
		score *= shortTextPenalty
		issues = append(issues, IssueShortText)
	}
	if total > 0 && float64(specialCount(text))/float64(total) > p.cfg.SpecialCharRatio {
		score *= specialCharPenalty
		issues = append(issues, IssueSpecialChars)
	}
	if hasRepeatRun(text, p.cfg.RepeatRun) {
		score *= repeatPenalty
		issues = append(issues, IssueRepeatedChars)
	}

	return Metrics{
		Score:       score,
		NeedsReview: score < p.cfg.ReviewThreshold || len(issues) > 0,
		Issues:      issues,
	}
}

func specialCount(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func hasRepeatRun(text string, run int) bool {
	var prev rune
	count := 0
	for _, r := range text {
		if r == prev && !unicode.IsSpace(r) {
			count++
			if count >= run {
				return true
			}
			continue
		}
		prev, count = r, 1
	}
	return false
}

// Package quality scores embedded text to decide whether a document can be
// used as-is or needs an OCR pass.
package quality

import (
	"math"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultQualityThreshold is the minimum characters per page for acceptable text.
	DefaultQualityThreshold = 100.0
	// DefaultCharRatioThreshold is the minimum share of letters and digits.
	DefaultCharRatioThreshold = 0.7
	// DefaultMaxReplacementRatio bounds the share of U+FFFD runes produced by
	// fonts without a usable encoding.
	DefaultMaxReplacementRatio = 0.05

	volumeWeight = 60.0
	ratioWeight  = 40.0
)

// Config holds the assessor thresholds.
type Config struct {
	QualityThreshold    float64
	CharRatioThreshold  float64
	MaxReplacementRatio float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		QualityThreshold:    DefaultQualityThreshold,
		CharRatioThreshold:  DefaultCharRatioThreshold,
		MaxReplacementRatio: DefaultMaxReplacementRatio,
	}
}

// Metrics is the outcome of one assessment.
type Metrics struct {
	Score             float64 `json:"score"`
	CharsPerPage      float64 `json:"chars_per_page"`
	AlphanumericRatio float64 `json:"alphanumeric_ratio"`
	IsAcceptable      bool    `json:"is_acceptable"`
}

// Assessor scores text density and cleanliness.
type Assessor struct {
	cfg Config
}

// NewAssessor creates an assessor. Non-positive thresholds fall back to defaults.
func NewAssessor(cfg Config) *Assessor {
	d := DefaultConfig()
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = d.QualityThreshold
	}
	if cfg.CharRatioThreshold <= 0 {
		cfg.CharRatioThreshold = d.CharRatioThreshold
	}
	if cfg.MaxReplacementRatio <= 0 {
		cfg.MaxReplacementRatio = d.MaxReplacementRatio
	}
	return &Assessor{cfg: cfg}
}

// Config returns the thresholds in use.
func (a *Assessor) Config() Config {
	return a.cfg
}

// Assess computes density and alphanumeric share of text spread over
// pageCount pages. Both thresholds must hold for the text to be acceptable.
// The score weighs volume at 60 and cleanliness at 40 points, each capped,
// so meeting both thresholds exactly yields 100.
func (a *Assessor) Assess(text string, pageCount int) Metrics {
	if pageCount <= 0 || text == "" {
		return Metrics{}
	}

	total := utf8.RuneCountInString(text)
	alnum := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}

	m := Metrics{
		CharsPerPage:      float64(total) / float64(pageCount),
		AlphanumericRatio: float64(alnum) / float64(total),
	}
	m.IsAcceptable = m.CharsPerPage >= a.cfg.QualityThreshold &&
		m.AlphanumericRatio >= a.cfg.CharRatioThreshold

	volume := math.Min(volumeWeight, m.CharsPerPage/a.cfg.QualityThreshold*volumeWeight)
	ratio := math.Min(ratioWeight, m.AlphanumericRatio/a.cfg.CharRatioThreshold*ratioWeight)
	m.Score = math.Min(100, volume+ratio)
	return m
}

// NeedsOCRFallback reports whether text assessed over pageCount pages should
// be replaced by OCR output. Text dominated by replacement characters is
// rejected even when its density looks healthy.
func (a *Assessor) NeedsOCRFallback(text string, pageCount int) bool {
	if !a.Assess(text, pageCount).IsAcceptable {
		return true
	}
	return ReplacementCharRatio(text) > a.cfg.MaxReplacementRatio
}

// ReplacementCharRatio returns the share of U+FFFD runes in text.
func ReplacementCharRatio(text string) float64 {
	total, bad := 0, 0
	for _, r := range text {
		total++
		if r == utf8.RuneError {
			bad++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}

package quality

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// sample builds n runes of which a share ratio are letters and the rest punctuation.
func sample(n int, ratio float64) string {
	alnum := int(float64(n)*ratio + 0.5)
	return strings.Repeat("a", alnum) + strings.Repeat("-", n-alnum)
}

// blocks repeats a ten-rune block holding k letters, so the ratio is exact.
func blocks(count, k int) string {
	return strings.Repeat(strings.Repeat("a", k)+strings.Repeat("-", 10-k), count)
}

func TestAssessScenarios(t *testing.T) {
	a := NewAssessor(DefaultConfig())

	t.Run("dense clean text is acceptable", func(t *testing.T) {
		m := a.Assess(sample(5000, 0.9), 10)
		assert.InDelta(t, 500.0, m.CharsPerPage, 1e-9)
		assert.InDelta(t, 0.9, m.AlphanumericRatio, 1e-9)
		assert.True(t, m.IsAcceptable)
		assert.InDelta(t, 100.0, m.Score, 1e-9)
		assert.False(t, a.NeedsOCRFallback(sample(5000, 0.9), 10))
	})

	t.Run("empty text over three pages", func(t *testing.T) {
		m := a.Assess("", 3)
		assert.Equal(t, 0.0, m.Score)
		assert.Equal(t, 0.0, m.CharsPerPage)
		assert.False(t, m.IsAcceptable)
		assert.True(t, a.NeedsOCRFallback("", 3))
	})

	t.Run("zero pages short-circuits", func(t *testing.T) {
		assert.Equal(t, Metrics{}, a.Assess("plenty of text", 0))
	})

	t.Run("both thresholds must hold", func(t *testing.T) {
		assert.False(t, a.Assess(sample(5000, 0.5), 10).IsAcceptable, "dirty text")
		assert.False(t, a.Assess(sample(50, 1.0), 1).IsAcceptable, "sparse text")
	})

	t.Run("exactly meeting both thresholds scores 100", func(t *testing.T) {
		m := a.Assess(sample(100, 0.7), 1)
		assert.True(t, m.IsAcceptable)
		assert.InDelta(t, 100.0, m.Score, 1e-9)
	})

	t.Run("multibyte runes are counted once", func(t *testing.T) {
		m := a.Assess(strings.Repeat("ж", 100), 1)
		assert.InDelta(t, 100.0, m.CharsPerPage, 1e-9)
		assert.True(t, m.IsAcceptable)
	})
}

func TestNeedsOCRFallbackOnReplacementFlood(t *testing.T) {
	a := NewAssessor(DefaultConfig())
	text := strings.Repeat("wordy", 40) + strings.Repeat("\uFFFD", 30)
	assert.True(t, a.Assess(text, 1).IsAcceptable)
	assert.True(t, a.NeedsOCRFallback(text, 1))
	assert.InDelta(t, 30.0/230.0, ReplacementCharRatio(text), 1e-9)
}

func TestNewAssessorDefaults(t *testing.T) {
	a := NewAssessor(Config{})
	assert.Equal(t, DefaultConfig(), a.Config())
}

func TestAssessProperties(t *testing.T) {
	a := NewAssessor(DefaultConfig())
	properties := gopter.NewProperties(nil)

	properties.Property("score never exceeds 100", prop.ForAll(
		func(text string, pages int) bool {
			m := a.Assess(text, pages)
			return m.Score <= 100 && m.Score >= 0
		},
		gen.AnyString(),
		gen.IntRange(0, 50),
	))

	properties.Property("empty text is never acceptable", prop.ForAll(
		func(pages int) bool {
			return !a.Assess("", pages).IsAcceptable
		},
		gen.IntRange(-5, 50),
	))

	properties.Property("more characters per page never lowers the score", prop.ForAll(
		func(n, extra, k int) bool {
			low := a.Assess(blocks(n, k), 1)
			high := a.Assess(blocks(n+extra, k), 1)
			return high.Score >= low.Score-1e-9
		},
		gen.IntRange(1, 40),
		gen.IntRange(0, 40),
		gen.IntRange(0, 10),
	))

	properties.Property("a lower alphanumeric ratio never raises the score", prop.ForAll(
		func(n int, r1, r2 float64) bool {
			hi, lo := max(r1, r2), min(r1, r2)
			return a.Assess(sample(1000, lo), n).Score <= a.Assess(sample(1000, hi), n).Score+1e-9
		},
		gen.IntRange(1, 20),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

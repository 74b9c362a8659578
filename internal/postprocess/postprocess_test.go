package postprocess

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	p := New(DefaultConfig())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces and trims", "  hello    world \t ", "hello world"},
		{"keeps a single blank line", "one\n\n\n\ntwo\n\n", "one\n\ntwo"},
		{"space before comma moves after", "a ,b", "a, b"},
		{"missing space after semicolon", "first;second", "first; second"},
		{"sentence boundary", "the end.Next one", "the end. Next one"},
		{"decimal comma untouched", "pay 3,50 now", "pay 3,50 now"},
		{"clock time untouched", "at 12:30", "at 12:30"},
		{"abbreviation untouched", "e.g. this", "e.g. this"},
		{"zero inside word", "B0OK store", "BOOK store"},
		{"lowercase zero inside word", "g0od", "good"},
		{"model number untouched", "A0B1", "A0B1"},
		{"letter O between digits", "total 1O5", "total 105"},
		{"letters between digits", "12l4.5O0", "1214.500"},
		{"pronoun I untouched", "I said 10", "I said 10"},
		{"edge lookalike untouched", "I-90", "I-90"},
		{"rn dictionary", "Frorn the docurnent", "From the document"},
		{"rn outside dictionary untouched", "the stern modern barn", "the stern modern barn"},
		{"decomposed accents compose", "cafe\u0301", "caf\u00e9"},
		{"windows newlines", "a\r\nb", "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Clean(tt.in))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	p := New(DefaultConfig())
	properties := gopter.NewProperties(nil)

	alphabet := []rune{
		'a', 'b', 'B', 'e', 'r', 'n', 'm', 'O', 'o', 'l', 'I', '0', '1', '5',
		' ', ' ', '\t', '\n', ',', '.', ';', ':', '!', '?', '-', '/', '\u00e9', '\u0301', '\u0436',
	}
	runeText := gen.SliceOf(gen.IntRange(0, len(alphabet)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteRune(alphabet[i])
		}
		return b.String()
	})

	properties.Property("clean(clean(t)) == clean(t) on confusable text", prop.ForAll(
		func(s string) bool {
			once := p.Clean(s)
			return p.Clean(once) == once
		},
		runeText,
	))

	properties.Property("clean(clean(t)) == clean(t) on arbitrary text", prop.ForAll(
		func(s string) bool {
			once := p.Clean(s)
			return p.Clean(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestCalculateQuality(t *testing.T) {
	p := New(DefaultConfig())
	clean := "The quarterly report shows stable revenue across all regions and months."

	t.Run("clean scanned page keeps confidence", func(t *testing.T) {
		m := p.CalculateQuality(clean, 0.95)
		assert.InDelta(t, 0.95, m.Score, 1e-9)
		assert.False(t, m.NeedsReview)
		assert.Empty(t, m.Issues)
	})

	t.Run("short noisy text flags both issues", func(t *testing.T) {
		text := "abcdefghijklmnopqr#$%&*@#$%&*@"
		require.Len(t, []rune(text), 30)
		m := p.CalculateQuality(text, 0.99)
		assert.Equal(t, []string{IssueShortText, IssueSpecialChars}, m.Issues)
		assert.True(t, m.NeedsReview)
		assert.InDelta(t, 0.99*0.9*0.8, m.Score, 1e-9)
	})

	t.Run("repeated characters", func(t *testing.T) {
		m := p.CalculateQuality(clean+" aaaaa", 1.0)
		assert.Equal(t, []string{IssueRepeatedChars}, m.Issues)
		assert.InDelta(t, 0.9, m.Score, 1e-9)
		assert.True(t, m.NeedsReview)
	})

	t.Run("low confidence alone triggers review", func(t *testing.T) {
		m := p.CalculateQuality(clean, 0.7)
		assert.Empty(t, m.Issues)
		assert.True(t, m.NeedsReview)
	})

	t.Run("all penalties stack", func(t *testing.T) {
		m := p.CalculateQuality("#####", 1.0)
		assert.Len(t, m.Issues, 3)
		assert.InDelta(t, 0.9*0.8*0.9, m.Score, 1e-9)
	})
}

func TestExtractMetadata(t *testing.T) {
	p := New(DefaultConfig())
	h := p.ExtractMetadata("Invoice 2024-03-01 due 15.04.2024, total $1,250.00 or 300 EUR. Mail billing@example.com, billing@example.com")

	assert.Equal(t, []string{"2024-03-01", "15.04.2024"}, h.Dates)
	assert.Contains(t, h.Amounts, "$1,250.00")
	assert.Contains(t, h.Amounts, "300 EUR")
	assert.Equal(t, []string{"billing@example.com"}, h.Emails)
	assert.False(t, h.Empty())
	assert.True(t, p.ExtractMetadata("nothing here").Empty())
}

// Package pdf reads embedded text from PDF documents, renders their pages
// for recognition and removes password protection.
package pdf

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/MeKo-Tech/docext/internal/tables"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// PageText is the embedded text of one page. Span coordinates are in
// points with the origin at the top-left corner of the page.
type PageText struct {
	Number int           `json:"number"`
	Text   string        `json:"text"`
	Spans  []tables.Span `json:"spans,omitempty"`
	Width  float64       `json:"width"`
	Height float64       `json:"height"`
}

// HasText reports whether the page carries any non-blank embedded text.
func (p PageText) HasText() bool {
	return strings.TrimSpace(p.Text) != ""
}

// StandardExtractor reads the text layer of PDF files.
type StandardExtractor struct {
	// SpanGap is the horizontal gap, as a fraction of the font size, above
	// which two glyphs on one baseline start separate spans.
	SpanGap float64
}

// NewStandardExtractor returns an extractor with default span splitting.
func NewStandardExtractor() *StandardExtractor {
	return &StandardExtractor{SpanGap: 0.8}
}

// Extract returns the text of every page joined by PageSeparator, and the
// number of pages read. Pages without embedded text still count.
func (e *StandardExtractor) Extract(path string) (string, int, error) {
	pages, err := e.ExtractPages(path)
	if err != nil {
		return "", 0, err
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, PageSeparator), len(pages), nil
}

// ExtractPages returns the text and positioned spans of every page in order.
// The file is closed on every return path, including a panic in the
// underlying reader.
func (e *StandardExtractor) ExtractPages(path string) (pages []PageText, err error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading a caller-supplied document is the point
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("failed to read PDF %q: %v", path, r)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF %q: %w", path, err)
	}
	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF %q: %w", path, err)
	}

	n := reader.NumPage()
	pages = make([]PageText, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, e.readPage(reader.Page(i), i))
	}
	return pages, nil
}

// readPage extracts one page. A page whose content stream cannot be parsed
// is returned without text so the caller can rasterize it instead.
func (e *StandardExtractor) readPage(page pdf.Page, number int) (pt PageText) {
	pt = PageText{Number: number, Width: defaultPageWidth, Height: defaultPageHeight}
	if page.V.IsNull() {
		return pt
	}
	pt.Width, pt.Height = pageSize(page)

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Failed to read page text", "page", number, "error", r)
			pt.Text, pt.Spans = "", nil
		}
	}()
	pt.Spans = e.buildSpans(page.Content().Text, pt.Height)
	pt.Text = joinLines(pt.Spans)
	return pt
}

// pageSize reads the MediaBox, following inheritance through the page tree.
func pageSize(page pdf.Page) (float64, float64) {
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
	}
	return defaultPageWidth, defaultPageHeight
}

// buildSpans merges consecutive glyphs on the same baseline into spans and
// flips them into top-left coordinates.
func (e *StandardExtractor) buildSpans(glyphs []pdf.Text, pageHeight float64) []tables.Span {
	var spans []tables.Span
	var cur strings.Builder
	var x0, x1, baseline, size float64

	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			spans = append(spans, tables.Span{
				Text: text,
				X:    x0,
				Y:    pageHeight - baseline - size,
				W:    x1 - x0,
				H:    size,
			})
		}
		cur.Reset()
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		gs := g.FontSize
		if gs <= 0 {
			gs = 1
		}
		if cur.Len() > 0 {
			sameLine := math.Abs(g.Y-baseline) <= 0.5*max(size, gs)
			gap := g.X - x1
			if !sameLine || gap > e.SpanGap*max(size, gs) || gap < -0.5*max(size, gs) {
				flush()
			}
		}
		if cur.Len() == 0 {
			x0, x1, baseline, size = g.X, g.X+g.W, g.Y, gs
		}
		cur.WriteString(g.S)
		x1 = max(x1, g.X+g.W)
		size = max(size, gs)
	}
	flush()
	return spans
}

// joinLines lays spans out in reading order: top to bottom, then left to
// right, one output line per baseline.
func joinLines(spans []tables.Span) string {
	if len(spans) == 0 {
		return ""
	}
	sorted := slices.Clone(spans)
	slices.SortStableFunc(sorted, func(a, b tables.Span) int {
		return cmp.Or(cmp.Compare(a.Y, b.Y), cmp.Compare(a.X, b.X))
	})

	var b strings.Builder
	lineTop := sorted[0].Y
	for i, s := range sorted {
		switch {
		case i == 0:
		case math.Abs(s.Y-lineTop) <= 0.5*s.H:
			b.WriteByte(' ')
		default:
			b.WriteByte('\n')
			lineTop = s.Y
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

package tables

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/docext/internal/common"
)

type row struct {
	top   float64
	spans []Span
}

// ExtractDigital finds tables among the positioned text of one page. Spans
// are bucketed into rows by their top edge, rows are grouped into regions
// separated by vertical gaps, and a region becomes a table when it has at
// least MinRows rows and some row has more than one span. Columns are
// shared by the whole region, so a missing cell leaves its column empty.
func (e *Extractor) ExtractDigital(page int, spans []Span) []Table {
	rows := e.bucketRows(spans)
	var tables []Table
	for _, region := range e.splitRegions(rows) {
		t, ok := e.regionTable(page, region)
		if !ok {
			continue
		}
		slog.Debug("Detected digital table", "page", page, "rows", t.Rows, "columns", t.Columns)
		tables = append(tables, t)
	}
	return tables
}

func (e *Extractor) bucketRows(spans []Span) []row {
	sorted := make([]Span, 0, len(spans))
	for _, s := range spans {
		if strings.TrimSpace(s.Text) != "" {
			sorted = append(sorted, s)
		}
	}
	slices.SortStableFunc(sorted, func(a, b Span) int {
		return cmp.Or(cmp.Compare(a.Y, b.Y), cmp.Compare(a.X, b.X))
	})

	var rows []row
	for _, s := range sorted {
		if n := len(rows); n > 0 && s.Y-rows[n-1].top <= e.cfg.RowTolerance {
			rows[n-1].spans = append(rows[n-1].spans, s)
			continue
		}
		rows = append(rows, row{top: s.Y, spans: []Span{s}})
	}
	for i := range rows {
		slices.SortStableFunc(rows[i].spans, func(a, b Span) int { return cmp.Compare(a.X, b.X) })
	}
	return rows
}

func (e *Extractor) splitRegions(rows []row) [][]row {
	var regions [][]row
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && rows[i].top-rowBottom(rows[i-1]) <= e.cfg.RegionGap {
			continue
		}
		regions = append(regions, rows[start:i])
		start = i
	}
	return regions
}

func rowBottom(r row) float64 {
	bottom := r.top
	for _, s := range r.spans {
		bottom = max(bottom, s.Y+s.H)
	}
	return bottom
}

func (e *Extractor) regionTable(page int, region []row) (Table, bool) {
	if len(region) < e.cfg.MinRows {
		return Table{}, false
	}
	multi := slices.ContainsFunc(region, func(r row) bool { return len(r.spans) > 1 })
	if !multi {
		return Table{}, false
	}

	edges := e.columnEdges(region)
	t := Table{Page: page, Source: common.SourceDigital, Rows: len(region), Columns: len(edges)}
	t.Data = make([][]string, len(region))
	for i, r := range region {
		cells := make([]string, len(edges))
		boxes := make([]common.Box, len(edges))
		for _, s := range r.spans {
			col := columnOf(edges, s.X)
			text := strings.TrimSpace(s.Text)
			if cells[col] != "" {
				text = cells[col] + " " + text
			}
			cells[col] = text
			boxes[col] = boxes[col].Union(s.box())
			t.BBox = t.BBox.Union(s.box())
		}
		for col, text := range cells {
			if text != "" {
				t.Cells = append(t.Cells, Cell{Row: i, Col: col, BBox: boxes[col], Text: text})
			}
		}
		t.Data[i] = cells
	}
	return t, true
}

// columnEdges clusters the left edges of all spans in a region. A gap wider
// than ColumnGap between sorted edges starts a new column; each column is
// represented by its leftmost edge.
func (e *Extractor) columnEdges(region []row) []float64 {
	var xs []float64
	for _, r := range region {
		for _, s := range r.spans {
			xs = append(xs, s.X)
		}
	}
	slices.Sort(xs)

	var edges []float64
	for i, x := range xs {
		if i == 0 || x-xs[i-1] > e.cfg.ColumnGap {
			edges = append(edges, x)
		}
	}
	return edges
}

// columnOf returns the last column whose edge is at or left of x.
func columnOf(edges []float64, x float64) int {
	i, found := slices.BinarySearch(edges, x)
	if found || i == 0 {
		return i
	}
	return i - 1
}

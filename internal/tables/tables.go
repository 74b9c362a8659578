// Package tables reconstructs tables from positioned PDF text and from
// ruled grids in page rasters.
package tables

import (
	"github.com/MeKo-Tech/docext/internal/common"
	"github.com/MeKo-Tech/docext/internal/ocr"
)

// Span is a run of text with its box in page coordinates, Y growing
// downwards.
type Span struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

func (s Span) box() common.Box {
	return common.Box{X: s.X, Y: s.Y, W: s.W, H: s.H}
}

// Cell is one table cell.
type Cell struct {
	Row  int        `json:"row"`
	Col  int        `json:"col"`
	BBox common.Box `json:"bbox"`
	Text string     `json:"text"`
}

// Table is a reconstructed table. Data has Rows rows of Columns entries
// each.
type Table struct {
	BBox    common.Box    `json:"bbox"`
	Page    int           `json:"page"`
	Source  common.Source `json:"source"`
	Rows    int           `json:"rows"`
	Columns int           `json:"columns"`
	Data    [][]string    `json:"data"`
	Cells   []Cell        `json:"cells,omitempty"`
}

// Config tunes both extraction paths.
type Config struct {
	// Digital path, in page units.
	RowTolerance float64 // spans whose tops differ by at most this share a row
	RegionGap    float64 // a larger vertical gap between rows starts a new region
	ColumnGap    float64 // a wider gap between sorted span left edges starts a new column
	MinRows      int     // a table needs more rows than MinRows-1

	// Scanned path.
	ScaleDivisor int     // line kernels span width/ScaleDivisor and height/ScaleDivisor
	MinTableArea float64 // minimum grid bounding box as a fraction of the page area
	LineCoverage float64 // share of the grid a ruling must cross to count
	CellPadding  int     // pixels trimmed inside each cell before OCR
	Languages    []string
}

// DefaultConfig returns the default extraction parameters.
func DefaultConfig() Config {
	return Config{
		RowTolerance: 3,
		RegionGap:    20,
		ColumnGap:    15,
		MinRows:      3,
		ScaleDivisor: 20,
		MinTableArea: 0.005,
		LineCoverage: 0.5,
		CellPadding:  2,
	}
}

// Extractor finds tables. Cell text on scanned pages comes from its
// Recognizer, which may be nil to leave cells empty.
type Extractor struct {
	cfg        Config
	recognizer ocr.Recognizer
}

// New returns an Extractor. Zero config fields take their defaults.
func New(cfg Config, recognizer ocr.Recognizer) *Extractor {
	d := DefaultConfig()
	if cfg.RowTolerance <= 0 {
		cfg.RowTolerance = d.RowTolerance
	}
	if cfg.RegionGap <= 0 {
		cfg.RegionGap = d.RegionGap
	}
	if cfg.ColumnGap <= 0 {
		cfg.ColumnGap = d.ColumnGap
	}
	if cfg.MinRows <= 0 {
		cfg.MinRows = d.MinRows
	}
	if cfg.ScaleDivisor <= 0 {
		cfg.ScaleDivisor = d.ScaleDivisor
	}
	if cfg.MinTableArea <= 0 {
		cfg.MinTableArea = d.MinTableArea
	}
	if cfg.LineCoverage <= 0 {
		cfg.LineCoverage = d.LineCoverage
	}
	if cfg.CellPadding <= 0 {
		cfg.CellPadding = d.CellPadding
	}
	return &Extractor{cfg: cfg, recognizer: recognizer}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// normalizeRows right-pads every row with empty strings to the longest row's
// length and returns that length.
func normalizeRows(rows [][]string) int {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	for i, r := range rows {
		for len(r) < cols {
			r = append(r, "")
		}
		rows[i] = r
	}
	return cols
}

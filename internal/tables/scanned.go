package tables

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docext/internal/common"
	"github.com/MeKo-Tech/docext/internal/raster"
)

// band is a run of consecutive pixel rows (or columns) covered by a ruling.
type band struct {
	start, end int // inclusive
}

// ExtractScanned finds ruled tables in a page raster. Horizontal and
// vertical rulings are isolated by directional opening of the ink mask, every
// connected grid large enough becomes a candidate, and the rulings inside it
// define the cells. Each cell is recognised on its own.
func (e *Extractor) ExtractScanned(ctx context.Context, page int, img image.Image) (tables []Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			tables, err = nil, &raster.ProcessingError{Operation: "scanned table extraction", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if img == nil {
		return nil, &raster.ProcessingError{Operation: "scanned table extraction", Err: errors.New("nil image")}
	}

	g := raster.ToGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	ink := raster.InkMask(g)
	horiz := raster.OpenHorizontal(ink, max(w/e.cfg.ScaleDivisor, 2))
	vert := raster.OpenVertical(ink, max(h/e.cfg.ScaleDivisor, 2))
	grid := raster.Or(horiz, vert)

	minArea := e.cfg.MinTableArea * float64(w*h)
	for _, c := range raster.ConnectedComponents(grid) {
		if float64(c.Area()) < minArea {
			continue
		}
		bounds := c.Bounds()
		rows := lineBands(horiz, bounds, true, e.cfg.LineCoverage)
		cols := lineBands(vert, bounds, false, e.cfg.LineCoverage)
		if len(rows) < 2 || len(cols) < 2 {
			continue
		}
		t, err := e.gridTable(ctx, page, img, img.Bounds().Min, bounds, rows, cols)
		if err != nil {
			return nil, err
		}
		slog.Debug("Detected ruled table", "page", page, "rows", t.Rows, "columns", t.Columns)
		tables = append(tables, t)
	}
	return tables, nil
}

// lineBands projects a line mask onto one axis inside r and returns the runs
// whose coverage reaches the given share of r's extent.
func lineBands(m *raster.Mask, r image.Rectangle, horizontal bool, coverage float64) []band {
	outer, inner := r.Dy(), r.Dx()
	if !horizontal {
		outer, inner = inner, outer
	}
	need := int(coverage * float64(inner))

	var bands []band
	open := false
	for i := range outer {
		n := 0
		for j := range inner {
			x, y := r.Min.X+j, r.Min.Y+i
			if !horizontal {
				x, y = r.Min.X+i, r.Min.Y+j
			}
			if m.At(x, y) {
				n++
			}
		}
		switch {
		case n >= need && n > 0 && !open:
			bands = append(bands, band{start: i, end: i})
			open = true
		case n >= need && n > 0:
			bands[len(bands)-1].end = i
		default:
			open = false
		}
	}
	base := r.Min.Y
	if !horizontal {
		base = r.Min.X
	}
	for i := range bands {
		bands[i].start += base
		bands[i].end += base
	}
	return bands
}

func (e *Extractor) gridTable(ctx context.Context, page int, img image.Image, origin image.Point, bounds image.Rectangle, rows, cols []band) (Table, error) {
	t := Table{
		BBox:    common.BoxFromRect(bounds),
		Page:    page,
		Source:  common.SourceOCR,
		Rows:    len(rows) - 1,
		Columns: len(cols) - 1,
	}
	pad := e.cfg.CellPadding
	t.Data = make([][]string, t.Rows)
	for r := range t.Rows {
		t.Data[r] = make([]string, t.Columns)
		for c := range t.Columns {
			cell := image.Rect(cols[c].end+1+pad, rows[r].end+1+pad, cols[c+1].start-pad, rows[r+1].start-pad)
			text, err := e.cellText(ctx, page, img, cell.Add(origin))
			if err != nil {
				return Table{}, err
			}
			t.Data[r][c] = text
			t.Cells = append(t.Cells, Cell{Row: r, Col: c, BBox: common.BoxFromRect(cell), Text: text})
		}
	}
	t.Columns = normalizeRows(t.Data)
	return t, nil
}

// cellText recognises one cell. Recognition failures leave the cell empty;
// only cancellation is returned.
func (e *Extractor) cellText(ctx context.Context, page int, img image.Image, cell image.Rectangle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.recognizer == nil || cell.Dx() <= 0 || cell.Dy() <= 0 {
		return "", nil
	}
	res, err := e.recognizer.Recognize(ctx, imaging.Crop(img, cell), e.cfg.Languages)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Debug("Cell recognition failed", "page", page, "cell", cell, "error", err)
		return "", nil
	}
	return strings.Join(strings.Fields(res.Text), " "), nil
}

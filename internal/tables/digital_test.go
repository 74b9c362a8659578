package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docext/internal/common"
)

func span(text string, x, y float64) Span {
	return Span{Text: text, X: x, Y: y, W: float64(len(text)) * 6, H: 12}
}

func TestExtractDigitalAcceptsTwoColumnRows(t *testing.T) {
	e := New(DefaultConfig(), nil)
	spans := []Span{
		span("Item", 72, 100), span("Price", 300, 100),
		span("Apples", 72, 116), span("1.20", 300, 117),
		span("Pears", 72, 132), span("2.40", 300, 131),
	}

	tables := e.ExtractDigital(2, spans)
	require.Len(t, tables, 1)
	tb := tables[0]
	assert.Equal(t, 3, tb.Rows)
	assert.Equal(t, 2, tb.Columns)
	assert.Equal(t, 2, tb.Page)
	assert.Equal(t, common.SourceDigital, tb.Source)
	assert.Equal(t, [][]string{{"Item", "Price"}, {"Apples", "1.20"}, {"Pears", "2.40"}}, tb.Data)
	assert.Len(t, tb.Cells, 6)
	assert.Equal(t, common.Box{X: 72, Y: 100, W: 258, H: 44}, tb.BBox)
}

func TestExtractDigitalRejectsSingleColumn(t *testing.T) {
	e := New(DefaultConfig(), nil)
	spans := []Span{span("First line", 72, 100), span("Second line", 72, 114), span("Third line", 72, 128)}
	assert.Empty(t, e.ExtractDigital(1, spans))
}

func TestExtractDigitalRejectsTwoRows(t *testing.T) {
	e := New(DefaultConfig(), nil)
	spans := []Span{span("a", 72, 100), span("b", 200, 100), span("c", 72, 114), span("d", 200, 114)}
	assert.Empty(t, e.ExtractDigital(1, spans))
}

func TestExtractDigitalPadsShortRows(t *testing.T) {
	e := New(DefaultConfig(), nil)
	spans := []Span{
		span("Name", 72, 100), span("Qty", 200, 100), span("Total", 300, 100),
		span("Bolts", 72, 116), span("4", 200, 116),
		span("Nuts", 72, 132),
	}

	tables := e.ExtractDigital(1, spans)
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Name", "Qty", "Total"}, {"Bolts", "4", ""}, {"Nuts", "", ""}}, tables[0].Data)
	assert.Equal(t, 3, tables[0].Columns)
}

func TestExtractDigitalKeepsEmptyMiddleCell(t *testing.T) {
	e := New(DefaultConfig(), nil)
	spans := []Span{
		span("Name", 72, 100), span("Qty", 200, 100), span("Total", 300, 100),
		span("Bolts", 72, 116), span("12.00", 302, 116),
		span("Nuts", 72, 132), span("8", 205, 132), span("4.00", 304, 132),
	}

	tables := e.ExtractDigital(1, spans)
	require.Len(t, tables, 1)
	tb := tables[0]
	assert.Equal(t, 3, tb.Columns)
	assert.Equal(t, [][]string{{"Name", "Qty", "Total"}, {"Bolts", "", "12.00"}, {"Nuts", "8", "4.00"}}, tb.Data)
	assert.Len(t, tb.Cells, 8)
	assert.Contains(t, tb.Cells, Cell{Row: 1, Col: 2, BBox: common.Box{X: 302, Y: 116, W: 30, H: 12}, Text: "12.00"})
}

func TestExtractDigitalJoinsSpansInOneColumn(t *testing.T) {
	e := New(DefaultConfig(), nil)
	spans := []Span{
		span("Item", 72, 100), span("Price", 300, 100),
		span("Green", 72, 116), span("apples", 110, 116), span("1.20", 300, 116),
		span("Pears", 72, 132), span("2.40", 300, 132),
	}

	tables := e.ExtractDigital(1, spans)
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Item", "", "Price"}, {"Green", "apples", "1.20"}, {"Pears", "", "2.40"}}, tables[0].Data)

	e = New(Config{ColumnGap: 50}, nil)
	tables = e.ExtractDigital(1, spans)
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Item", "Price"}, {"Green apples", "1.20"}, {"Pears", "2.40"}}, tables[0].Data)
}

func TestExtractDigitalSplitsRegionsOnGaps(t *testing.T) {
	e := New(DefaultConfig(), nil)
	spans := []Span{
		span("Introduction to the quarterly numbers", 72, 60),
		span("More prose continues on this line", 72, 74),

		span("Q1", 72, 140), span("10", 200, 140),
		span("Q2", 72, 156), span("12", 200, 156),
		span("Q3", 72, 172), span("15", 200, 172),

		span("Closing remarks", 72, 260),
		span("and a signature", 72, 274),
		span("with a date", 72, 288),
	}

	tables := e.ExtractDigital(1, spans)
	require.Len(t, tables, 1)
	assert.Equal(t, [][]string{{"Q1", "10"}, {"Q2", "12"}, {"Q3", "15"}}, tables[0].Data)
}

func TestExtractDigitalIgnoresBlankSpans(t *testing.T) {
	e := New(DefaultConfig(), nil)
	assert.Empty(t, e.ExtractDigital(1, nil))
	assert.Empty(t, e.ExtractDigital(1, []Span{{Text: "  ", X: 1, Y: 1}}))
}

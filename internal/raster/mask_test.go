package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskFromRows(rows ...string) *Mask {
	m := NewMask(len(rows[0]), len(rows))
	for y, r := range rows {
		for x, c := range r {
			m.Set(x, y, c == '#')
		}
	}
	return m
}

func TestOpenHorizontal(t *testing.T) {
	m := maskFromRows(
		"..........",
		".########.",
		"..##......",
		"#.#.#.#.#.",
	)

	out := OpenHorizontal(m, 5)

	for x := 1; x <= 8; x++ {
		assert.True(t, out.At(x, 1), "long run kept at x=%d", x)
	}
	assert.False(t, out.At(0, 1))
	assert.False(t, out.At(9, 1))
	assert.Equal(t, 0, countRow(out, 2), "short run removed")
	assert.Equal(t, 0, countRow(out, 3), "dotted row removed")
}

func TestOpenVertical(t *testing.T) {
	m := maskFromRows(
		"#..",
		"#.#",
		"#.#",
		"#..",
		"#..",
	)

	out := OpenVertical(m, 4)

	assert.Equal(t, 5, countCol(out, 0))
	assert.Equal(t, 0, countCol(out, 2))
}

func TestOpenKeepsRunsTouchingBorder(t *testing.T) {
	m := maskFromRows("######....")
	out := OpenHorizontal(m, 4)
	assert.Equal(t, 6, out.Count())
}

func TestSmearHorizontal(t *testing.T) {
	m := maskFromRows("#..#.....#")
	out := SmearHorizontal(m, 3)
	assert.Equal(t, "####.....#", rowString(out, 0))
}

func TestOr(t *testing.T) {
	a := maskFromRows("#...")
	b := maskFromRows("...#")
	assert.Equal(t, "#..#", rowString(Or(a, b), 0))
}

func TestConnectedComponents(t *testing.T) {
	m := maskFromRows(
		"##....",
		"##..#.",
		"....##",
		"......",
		"#.....",
	)

	comps := ConnectedComponents(m)
	require.Len(t, comps, 3)

	assert.Equal(t, Component{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1, Pixels: 4}, comps[0])
	assert.Equal(t, 3, comps[1].Pixels, "diagonal neighbours join")
	assert.Equal(t, 4, comps[1].MinX)
	assert.Equal(t, 5, comps[1].MaxX)
	assert.Equal(t, 1, comps[2].Area())
}

func countRow(m *Mask, y int) int {
	n := 0
	for x := 0; x < m.W; x++ {
		if m.At(x, y) {
			n++
		}
	}
	return n
}

func countCol(m *Mask, x int) int {
	n := 0
	for y := 0; y < m.H; y++ {
		if m.At(x, y) {
			n++
		}
	}
	return n
}

func rowString(m *Mask, y int) string {
	b := make([]byte, m.W)
	for x := range b {
		b[x] = '.'
		if m.At(x, y) {
			b[x] = '#'
		}
	}
	return string(b)
}

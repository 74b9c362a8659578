package raster

// Mask is a binary raster stored row-major. True marks foreground.
type Mask struct {
	W, H int
	Pix  []bool
}

// NewMask allocates an empty w×h mask.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]bool, w*h)}
}

// At reports whether (x, y) is foreground. Out-of-range coordinates are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x]
}

// Set marks (x, y) with v.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Pix[y*m.W+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Or returns the union of two masks of equal size.
func Or(a, b *Mask) *Mask {
	out := NewMask(a.W, a.H)
	for i := range out.Pix {
		out.Pix[i] = a.Pix[i] || b.Pix[i]
	}
	return out
}

// OpenHorizontal keeps only horizontal runs of at least k foreground pixels.
func OpenHorizontal(m *Mask, k int) *Mask {
	if k <= 1 {
		return m
	}
	return morph1D(morph1D(m, k, true, true), k, true, false)
}

// OpenVertical keeps only vertical runs of at least k foreground pixels.
func OpenVertical(m *Mask, k int) *Mask {
	if k <= 1 {
		return m
	}
	return morph1D(morph1D(m, k, false, true), k, false, false)
}

// SmearHorizontal fills background gaps shorter than gap pixels that sit
// between two foreground pixels on the same row (run-length smoothing).
func SmearHorizontal(m *Mask, gap int) *Mask {
	out := NewMask(m.W, m.H)
	copy(out.Pix, m.Pix)
	for y := 0; y < m.H; y++ {
		row := out.Pix[y*m.W : (y+1)*m.W]
		last := -1
		for x, v := range row {
			if !v {
				continue
			}
			if last >= 0 && x-last-1 > 0 && x-last-1 < gap {
				for i := last + 1; i < x; i++ {
					row[i] = true
				}
			}
			last = x
		}
	}
	return out
}

// morph1D erodes or dilates m with a flat line element of length k, either
// along rows or along columns. Prefix sums keep the cost independent of k.
func morph1D(src *Mask, k int, horizontal, erode bool) *Mask {
	dst := NewMask(src.W, src.H)
	lines, n, step, lineStep := src.H, src.W, 1, src.W
	if !horizontal {
		lines, n, step, lineStep = src.W, src.H, src.W, 1
	}
	lo := (k - 1) / 2
	hi := k - 1 - lo

	prefix := make([]int, n+1)
	for l := range lines {
		base := l * lineStep
		for i := range n {
			prefix[i+1] = prefix[i]
			if src.Pix[base+i*step] {
				prefix[i+1]++
			}
		}
		for i := range n {
			a, b := i-hi, i+lo
			if erode {
				a, b = i-lo, i+hi
				if a < 0 || b >= n {
					continue
				}
			}
			a = max(a, 0)
			b = min(b, n-1)
			c := prefix[b+1] - prefix[a]
			if (erode && c == k) || (!erode && c > 0) {
				dst.Pix[base+i*step] = true
			}
		}
	}
	return dst
}

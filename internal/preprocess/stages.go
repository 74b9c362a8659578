package preprocess

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docext/internal/raster"
)

type grayscaleStage struct{}

func (grayscaleStage) Name() string { return StageGrayscale }

func (grayscaleStage) Apply(img image.Image) (image.Image, error) {
	return raster.ToGray(img), nil
}

// denoiseStage is a 3×3 mean in which each neighbour is weighted by its
// intensity similarity to the centre, so edges survive while flat areas are
// smoothed.
type denoiseStage struct {
	weights [256]float64
}

func newDenoiseStage(sigma float64) denoiseStage {
	var s denoiseStage
	for d := range s.weights {
		s.weights[d] = math.Exp(-float64(d*d) / (2 * sigma * sigma))
	}
	return s
}

func (denoiseStage) Name() string { return StageDenoise }

func (s denoiseStage) Apply(img image.Image) (image.Image, error) {
	g := raster.ToGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			c := int(g.Pix[y*g.Stride+x])
			var sum, norm float64
			for dy := -1; dy <= 1; dy++ {
				ny := min(max(y+dy, 0), h-1)
				for dx := -1; dx <= 1; dx++ {
					nx := min(max(x+dx, 0), w-1)
					v := int(g.Pix[ny*g.Stride+nx])
					wt := s.weights[abs(v-c)]
					sum += wt * float64(v)
					norm += wt
				}
			}
			out.Pix[y*out.Stride+x] = uint8(math.Round(sum / norm))
		}
	}
	return out, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// deskewStage corrects small tilts measured from the minimum-area rectangle
// around the ink.
type deskewStage struct {
	minAngle, maxAngle float64
}

func (deskewStage) Name() string { return StageDeskew }

func (s deskewStage) Apply(img image.Image) (image.Image, error) {
	g := raster.ToGray(img)
	angle, ok := EstimateSkew(g)
	if !ok || math.Abs(angle) <= s.minAngle || math.Abs(angle) > s.maxAngle {
		return g, nil
	}
	return raster.ToGray(imaging.Rotate(g, angle, color.White)), nil
}

// EstimateSkew returns the tilt of the ink in degrees, positive when the
// content leans clockwise. ok is false when there is too little ink.
func EstimateSkew(g *image.Gray) (float64, bool) {
	m := raster.InkMask(g)
	pts := extremePoints(m)
	rect, ok := raster.MinAreaRect(pts)
	if !ok {
		return 0, false
	}
	return rect.SkewAngle(), true
}

// extremePoints collects the outermost ink pixel of every row and column.
// They span the same convex hull as the full ink set.
func extremePoints(m *raster.Mask) []raster.Point {
	var pts []raster.Point
	for y := 0; y < m.H; y++ {
		lo, hi := -1, -1
		for x := 0; x < m.W; x++ {
			if m.Pix[y*m.W+x] {
				if lo < 0 {
					lo = x
				}
				hi = x
			}
		}
		if lo >= 0 {
			pts = append(pts, raster.Point{X: float64(lo), Y: float64(y)}, raster.Point{X: float64(hi), Y: float64(y)})
		}
	}
	for x := 0; x < m.W; x++ {
		lo, hi := -1, -1
		for y := 0; y < m.H; y++ {
			if m.Pix[y*m.W+x] {
				if lo < 0 {
					lo = y
				}
				hi = y
			}
		}
		if lo >= 0 {
			pts = append(pts, raster.Point{X: float64(x), Y: float64(lo)}, raster.Point{X: float64(x), Y: float64(hi)})
		}
	}
	return pts
}

// contrastStage is contrast-limited adaptive histogram equalisation: each
// tile gets its own clipped equalisation curve and pixels blend the curves
// of the four nearest tile centres.
type contrastStage struct {
	tiles int
	clip  float64
}

func (contrastStage) Name() string { return StageContrast }

func (s contrastStage) Apply(img image.Image) (image.Image, error) {
	g := raster.ToGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}
	tx, ty := min(s.tiles, w), min(s.tiles, h)
	tileW := (w + tx - 1) / tx
	tileH := (h + ty - 1) / ty

	luts := make([][256]uint8, tx*ty)
	for j := range ty {
		for i := range tx {
			r := image.Rect(i*tileW, j*tileH, min((i+1)*tileW, w), min((j+1)*tileH, h))
			luts[j*tx+i] = s.tileLUT(g, r)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		y0 := clampInt(int(math.Floor(fy)), 0, ty-1)
		y1 := clampInt(y0+1, 0, ty-1)
		ay := clampFloat(fy-float64(y0), 0, 1)
		for x := range w {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			x0 := clampInt(int(math.Floor(fx)), 0, tx-1)
			x1 := clampInt(x0+1, 0, tx-1)
			ax := clampFloat(fx-float64(x0), 0, 1)

			v := g.Pix[y*g.Stride+x]
			top := (1-ax)*float64(luts[y0*tx+x0][v]) + ax*float64(luts[y0*tx+x1][v])
			bottom := (1-ax)*float64(luts[y1*tx+x0][v]) + ax*float64(luts[y1*tx+x1][v])
			out.Pix[y*out.Stride+x] = uint8(math.Round((1-ay)*top + ay*bottom))
		}
	}
	return out, nil
}

func (s contrastStage) tileLUT(g *image.Gray, r image.Rectangle) [256]uint8 {
	var hist [256]int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			hist[g.Pix[y*g.Stride+x]]++
		}
	}
	area := r.Dx() * r.Dy()

	limit := max(1, int(s.clip*float64(area)/256))
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	share, rest := excess/256, excess%256
	for i := range hist {
		hist[i] += share
		if i < rest {
			hist[i]++
		}
	}

	var lut [256]uint8
	cdf := 0
	for i, c := range hist {
		cdf += c
		lut[i] = uint8(min(255, cdf*255/area))
	}
	return lut
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

type binarizeStage struct{}

func (binarizeStage) Name() string { return StageBinarize }

func (binarizeStage) Apply(img image.Image) (image.Image, error) {
	g := raster.ToGray(img)
	return raster.Binarize(g, raster.OtsuThreshold(g)), nil
}

package raster

import (
	"image"

	"github.com/disintegration/imaging"
)

// ToGray converts img to an 8-bit grayscale raster anchored at the origin.
// An *image.Gray that already starts at (0,0) is returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

// Histogram returns the 256-bin intensity histogram of g.
func Histogram(g *image.Gray) [256]int {
	var hist [256]int
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// OtsuThreshold returns the intensity that maximises the between-class
// variance of g. Pixels at or below the threshold form the dark class.
func OtsuThreshold(g *image.Gray) uint8 {
	hist := Histogram(g)
	total := g.Rect.Dx() * g.Rect.Dy()
	if total == 0 {
		return 0
	}

	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var sumB, maxVariance float64
	best, wB := 0, 0
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best)
}

// Binarize maps every pixel at or below t to black and the rest to white.
func Binarize(g *image.Gray, t uint8) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			if v > t {
				dst[x] = 255
			}
		}
	}
	return out
}

// InkMask marks dark pixels (at or below the Otsu threshold) as foreground.
// A page without any contrast yields an empty mask.
func InkMask(g *image.Gray) *Mask {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	m := NewMask(w, h)
	hist := Histogram(g)
	distinct := 0
	for _, c := range hist {
		if c > 0 {
			distinct++
		}
	}
	if distinct < 2 {
		return m
	}
	t := OtsuThreshold(g)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			if v <= t {
				m.Pix[y*w+x] = true
			}
		}
	}
	return m
}

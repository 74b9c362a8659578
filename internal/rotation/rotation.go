// Package rotation detects pages scanned at a right angle and turns them
// upright before recognition.
package rotation

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/docext/internal/raster"
)

// Angles are the candidate corrections, in degrees counter-clockwise.
var Angles = [4]int{0, 90, 180, 270}

const (
	// DefaultConfidenceThreshold is the normalised margin a non-zero candidate
	// needs over the unrotated page.
	DefaultConfidenceThreshold = 0.15
	// DefaultThumbnailSize bounds the longer side of the analysed raster.
	DefaultThumbnailSize = 512

	verticalWeight  = 0.3
	portraitBonus   = 1.2
	alignmentWeight = 0.25
	minPortrait     = 1.2
	maxPortrait     = 1.8

	// smearGap joins glyphs of one word; minBarLength drops anything shorter
	// than a short word at thumbnail scale.
	smearGap     = 4
	minBarLength = 10
)

// Config controls rotation detection.
type Config struct {
	Enabled             bool
	ConfidenceThreshold float64
	ThumbnailSize       int
}

// DefaultConfig returns enabled detection with default thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		ThumbnailSize:       DefaultThumbnailSize,
	}
}

// Result is the outcome of one detection.
type Result struct {
	Angle  int        // correction in degrees counter-clockwise, one of Angles
	Margin float64    // normalised score of the best candidate minus that of 0°
	Scores [4]float64 // raw text-likeness per candidate, indexed like Angles
}

// Corrector scores the four right-angle orientations of a page.
type Corrector struct {
	cfg Config
}

// NewCorrector creates a Corrector, filling unset fields with defaults.
func NewCorrector(cfg Config) *Corrector {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = DefaultThumbnailSize
	}
	return &Corrector{cfg: cfg}
}

// DetectAndCorrect returns img turned upright and the correction applied.
// Detection failures leave the page unrotated.
func (c *Corrector) DetectAndCorrect(img image.Image) (image.Image, int) {
	if !c.cfg.Enabled || img == nil {
		return img, 0
	}
	res, err := c.Detect(img)
	if err != nil {
		slog.Debug("Rotation detection failed", "error", err)
		return img, 0
	}
	if res.Angle == 0 {
		slog.Debug("No rotation applied", "margin", res.Margin)
		return img, 0
	}
	slog.Debug("Applied rotation", "angle", res.Angle, "margin", res.Margin)
	return Rotate(img, res.Angle), res.Angle
}

// Detect scores every candidate orientation. A candidate other than 0° wins
// only if its normalised score beats 0° by more than the threshold.
func (c *Corrector) Detect(img image.Image) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("rotation detection panicked: %v", r)
		}
	}()

	if img == nil {
		return Result{}, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Dx() < minBarLength || b.Dy() < minBarLength {
		return Result{}, fmt.Errorf("image too small for rotation detection: %dx%d", b.Dx(), b.Dy())
	}

	thumb := imaging.Fit(img, c.cfg.ThumbnailSize, c.cfg.ThumbnailSize, imaging.Box)
	for i, angle := range Angles {
		res.Scores[i] = textLikeness(raster.ToGray(Rotate(thumb, angle)))
	}

	maxAbs := 0.0
	best := 0
	for i, s := range res.Scores {
		maxAbs = math.Max(maxAbs, math.Abs(s))
		if s > res.Scores[best] {
			best = i
		}
	}
	if maxAbs == 0 {
		return res, nil
	}

	res.Margin = (res.Scores[best] - res.Scores[0]) / maxAbs
	if best != 0 && res.Margin > c.cfg.ConfidenceThreshold {
		res.Angle = Angles[best]
	}
	return res, nil
}

// Rotate turns img counter-clockwise by a multiple of 90 degrees.
func Rotate(img image.Image, angle int) image.Image {
	switch ((angle % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

// textLikeness rewards long horizontal ink bars, the signature of upright
// text lines once glyphs of a word are smeared together.
func textLikeness(g *image.Gray) float64 {
	bars := raster.OpenHorizontal(raster.SmearHorizontal(raster.InkMask(g), smearGap), minBarLength)
	h, v := edgeDensities(bars)
	score := h - verticalWeight*v

	if ratio := float64(bars.H) / float64(bars.W); ratio >= minPortrait && ratio <= maxPortrait {
		score *= portraitBonus
	}
	return score * (1 + alignmentWeight*alignment(bars))
}

// edgeDensities returns the share of pixels whose lower (h) or right (v)
// neighbour differs.
func edgeDensities(m *raster.Mask) (h, v float64) {
	var hc, vc int
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			cur := m.Pix[y*m.W+x]
			if y+1 < m.H && cur != m.Pix[(y+1)*m.W+x] {
				hc++
			}
			if x+1 < m.W && cur != m.Pix[y*m.W+x+1] {
				vc++
			}
		}
	}
	n := float64(m.W * m.H)
	return float64(hc) / n, float64(vc) / n
}

// alignment compares the spread of line ends with the spread of line starts.
// Left-aligned text has flush starts and ragged ends and yields a value near
// 1; the same page upside down yields a value near -1.
func alignment(m *raster.Mask) float64 {
	var starts, ends []float64
	inLine := false
	start, end := 0, 0
	for y := 0; y <= m.H; y++ {
		lo, hi := -1, -1
		if y < m.H {
			for x := 0; x < m.W; x++ {
				if m.Pix[y*m.W+x] {
					if lo < 0 {
						lo = x
					}
					hi = x
				}
			}
		}
		switch {
		case lo >= 0 && !inLine:
			inLine, start, end = true, lo, hi
		case lo >= 0:
			start, end = min(start, lo), max(end, hi)
		case inLine:
			inLine = false
			starts = append(starts, float64(start))
			ends = append(ends, float64(end))
		}
	}
	if len(starts) < 3 {
		return 0
	}
	sS, sE := stddev(starts), stddev(ends)
	if sS+sE == 0 {
		return 0
	}
	return (sE - sS) / (sE + sS)
}

func stddev(xs []float64) float64 {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	sum := 0.0
	for _, x := range xs {
		sum += (x - mean) * (x - mean)
	}
	return math.Sqrt(sum / float64(len(xs)))
}

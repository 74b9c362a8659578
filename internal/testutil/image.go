package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
)

// ImageSize represents image dimensions in pixels.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// PortraitSize has the aspect ratio of an A4 page at low resolution.
	PortraitSize = ImageSize{600, 850}
	// SmallSize is a small landscape canvas.
	SmallSize = ImageSize{320, 240}
)

// PageConfig describes a synthetic document page.
type PageConfig struct {
	Size        ImageSize
	Lines       []string
	Margin      int
	LineSpacing int
	Scale       int
	Background  color.Color
	Foreground  color.Color
}

// DefaultPageLines are left-aligned lines of uneven length, like a paragraph.
var DefaultPageLines = []string{
	"Quarterly report for the northern region",
	"Revenue grew in every month of the period",
	"Operating costs were stable",
	"The board approved the new budget",
	"Headcount increased by twelve people in sales",
	"Two offices moved to new buildings",
	"Customer satisfaction improved again",
	"Inventory levels stayed within targets",
	"Next review is scheduled for the spring",
	"Questions go to the finance team",
	"Shipping times dropped by two days",
	"Every audit closed without findings",
}

// DefaultPageConfig returns a portrait page filled with DefaultPageLines.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:        PortraitSize,
		Lines:       DefaultPageLines,
		Margin:      40,
		LineSpacing: 34,
		Scale:       1,
		Background:  color.White,
		Foreground:  color.Black,
	}
}

// GeneratePage renders the configured lines left-aligned from the top margin
// with the 7x13 bitmap font, optionally enlarged by Scale.
func GeneratePage(cfg PageConfig) *image.NRGBA {
	scale := max(cfg.Scale, 1)
	w, h := cfg.Size.Width/scale, cfg.Size.Height/scale
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: small, Src: &image.Uniform{cfg.Foreground}, Face: face}
	margin := cfg.Margin / scale
	spacing := max(cfg.LineSpacing/scale, face.Metrics().Height.Ceil())
	for i, line := range cfg.Lines {
		y := margin + (i+1)*spacing
		if y >= h-margin {
			break
		}
		drawer.Dot = fixed.P(margin, y)
		drawer.DrawString(line)
	}

	if scale == 1 {
		return imaging.Clone(small)
	}
	return imaging.Resize(small, w*scale, h*scale, imaging.NearestNeighbor)
}

// TableConfig describes a ruled grid drawn on a blank page.
type TableConfig struct {
	Size       ImageSize
	Origin     image.Point
	Rows, Cols int
	CellWidth  int
	CellHeight int
	Thickness  int
	CellText   bool
}

// DefaultTableConfig returns a 3x2 ruled table on a small page.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		Size:       ImageSize{500, 400},
		Origin:     image.Pt(50, 60),
		Rows:       3,
		Cols:       2,
		CellWidth:  180,
		CellHeight: 60,
		Thickness:  3,
		CellText:   true,
	}
}

// GenerateRuledTable draws a table grid with black rulings and optional
// short labels in every cell.
func GenerateRuledTable(cfg TableConfig) *image.NRGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	tw, th := cfg.Cols*cfg.CellWidth, cfg.Rows*cfg.CellHeight
	for r := 0; r <= cfg.Rows; r++ {
		y := cfg.Origin.Y + r*cfg.CellHeight
		fill(img, image.Rect(cfg.Origin.X, y, cfg.Origin.X+tw+cfg.Thickness, y+cfg.Thickness))
	}
	for c := 0; c <= cfg.Cols; c++ {
		x := cfg.Origin.X + c*cfg.CellWidth
		fill(img, image.Rect(x, cfg.Origin.Y, x+cfg.Thickness, cfg.Origin.Y+th+cfg.Thickness))
	}

	if cfg.CellText {
		drawer := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
		for r := 0; r < cfg.Rows; r++ {
			for c := 0; c < cfg.Cols; c++ {
				drawer.Dot = fixed.P(cfg.Origin.X+c*cfg.CellWidth+15, cfg.Origin.Y+r*cfg.CellHeight+cfg.CellHeight/2+5)
				drawer.DrawString(string(rune('A'+r)) + string(rune('1'+c)))
			}
		}
	}
	return imaging.Clone(img)
}

func fill(img draw.Image, r image.Rectangle) {
	draw.Draw(img, r, image.Black, image.Point{}, draw.Src)
}

// GenerateSkewedBlock draws a solid dark block and rotates the page
// counter-clockwise by angle degrees on a white background.
func GenerateSkewedBlock(size ImageSize, angle float64) *image.NRGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	fill(img, image.Rect(size.Width/5, size.Height/3, size.Width*4/5, size.Height/2))
	if angle == 0 {
		return imaging.Clone(img)
	}
	return imaging.Rotate(img, angle, color.White)
}

// WriteImage encodes img into dir using the format implied by name's
// extension and returns the full path.
func WriteImage(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, nil)
	default:
		err = png.Encode(f, img)
	}
	require.NoError(t, err)
	return path
}

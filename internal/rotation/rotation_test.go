package rotation

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docext/internal/testutil"
)

func uprightPage() image.Image {
	return testutil.GeneratePage(testutil.DefaultPageConfig())
}

func TestDetectUprightPage(t *testing.T) {
	c := NewCorrector(DefaultConfig())

	res, err := c.Detect(uprightPage())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Angle)
	assert.Greater(t, res.Scores[0], res.Scores[1], "upright beats quarter turn")
	assert.Greater(t, res.Scores[0], res.Scores[2], "upright beats upside down")
}

func TestDetectAndCorrectQuarterTurn(t *testing.T) {
	c := NewCorrector(DefaultConfig())
	turned := imaging.Rotate90(uprightPage())

	corrected, angle := c.DetectAndCorrect(turned)
	assert.Contains(t, []int{90, 270}, angle)
	b := corrected.Bounds()
	assert.Greater(t, b.Dy(), b.Dx(), "corrected page is portrait again")
	assert.Equal(t, 270, angle, "left alignment resolves the direction")
}

func TestDetectFlippedPageTrendsToOppositeAngle(t *testing.T) {
	c := NewCorrector(DefaultConfig())
	page := uprightPage()

	first, err := c.Detect(page)
	require.NoError(t, err)

	second, err := c.Detect(imaging.Rotate180(page))
	require.NoError(t, err)
	assert.Equal(t, (first.Angle+180)%360, second.Angle)
}

func TestBlankPageStaysUnrotated(t *testing.T) {
	blank := imaging.New(300, 400, color.White)
	out, angle := NewCorrector(DefaultConfig()).DetectAndCorrect(blank)
	assert.Equal(t, 0, angle)
	assert.Same(t, blank, out)
}

func TestDetectionFailuresDegradeToZero(t *testing.T) {
	c := NewCorrector(DefaultConfig())

	tiny := imaging.New(3, 3, color.Black)
	out, angle := c.DetectAndCorrect(tiny)
	assert.Equal(t, 0, angle)
	assert.Same(t, tiny, out)

	_, err := c.Detect(tiny)
	assert.Error(t, err)

	out, angle = c.DetectAndCorrect(nil)
	assert.Nil(t, out)
	assert.Equal(t, 0, angle)
}

func TestDisabledCorrectorIsPassThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	turned := imaging.Rotate90(uprightPage())

	out, angle := NewCorrector(cfg).DetectAndCorrect(turned)
	assert.Equal(t, 0, angle)
	assert.Equal(t, turned.Bounds(), out.Bounds())
}

func TestRotate(t *testing.T) {
	img := imaging.New(40, 20, color.White)
	assert.Equal(t, image.Rect(0, 0, 20, 40), Rotate(img, 90).Bounds())
	assert.Equal(t, image.Rect(0, 0, 40, 20), Rotate(img, 180).Bounds())
	assert.Equal(t, image.Rect(0, 0, 20, 40), Rotate(img, -90).Bounds())
	assert.Same(t, image.Image(img), Rotate(img, 360))
}

func TestDetectAlwaysReturnsRightAngle(t *testing.T) {
	c := NewCorrector(DefaultConfig())
	properties := gopter.NewProperties(nil)

	properties.Property("angle is one of 0, 90, 180, 270", prop.ForAll(
		func(w, h int, seed int64) bool {
			img := image.NewGray(image.Rect(0, 0, w, h))
			state := uint64(seed)
			for i := range img.Pix {
				state = state*6364136223846793005 + 1442695040888963407
				img.Pix[i] = uint8(state >> 56)
			}
			_, angle := c.DetectAndCorrect(img)
			return angle == 0 || angle == 90 || angle == 180 || angle == 270
		},
		gen.IntRange(1, 80),
		gen.IntRange(1, 80),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

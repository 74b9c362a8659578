package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docext/internal/common"
)

type fakeBackend struct {
	boxes    []gosseract.BoundingBox
	err      error
	setLangs [][]string
	images   int
	closed   int

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (f *fakeBackend) SetLanguage(langs ...string) error {
	f.setLangs = append(f.setLangs, langs)
	return nil
}

func (f *fakeBackend) SetPageSegMode(gosseract.PageSegMode) error { return nil }

func (f *fakeBackend) SetImageFromBytes(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty image")
	}
	f.images++
	return nil
}

func (f *fakeBackend) GetBoundingBoxes(gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	if n > f.maxSeen.Load() {
		f.maxSeen.Store(n)
	}
	time.Sleep(f.delay)
	return f.boxes, f.err
}

func (f *fakeBackend) Close() error {
	f.closed++
	return nil
}

func box(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}

func testImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 20, 10))
}

func TestRecognizeBuildsLines(t *testing.T) {
	fb := &fakeBackend{boxes: []gosseract.BoundingBox{
		{Box: box(10, 10, 200, 20), Word: "Invoice total\n", Confidence: 96},
		{Box: box(10, 40, 180, 20), Word: "   ", Confidence: 10},
		{Box: box(10, 70, 150, 20), Word: "Due in 30 days", Confidence: 70},
	}}
	e, err := newEngine(DefaultConfig(), fb)
	require.NoError(t, err)

	res, err := e.Recognize(context.Background(), testImage(), nil)
	require.NoError(t, err)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "Invoice total\nDue in 30 days", res.Text)
	assert.InDelta(t, 0.83, res.Confidence, 1e-9)
	assert.Equal(t, common.Box{X: 10, Y: 10, W: 200, H: 20}, res.Lines[0].BBox)
	assert.False(t, res.Lines[0].NeedsReview)
	assert.True(t, res.Lines[1].NeedsReview)
	assert.Equal(t, LanguageLatin, res.Language)
}

func TestRecognizeEmpty(t *testing.T) {
	e, err := newEngine(DefaultConfig(), &fakeBackend{})
	require.NoError(t, err)

	res, err := e.Recognize(context.Background(), testImage(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.Text)
	assert.Equal(t, LanguageUnknown, res.Language)
}

func TestRecognizeErrors(t *testing.T) {
	fb := &fakeBackend{err: errors.New("tesseract crashed")}
	e, err := newEngine(DefaultConfig(), fb)
	require.NoError(t, err)

	_, err = e.Recognize(context.Background(), testImage(), nil)
	require.ErrorContains(t, err, "tesseract crashed")

	_, err = e.Recognize(context.Background(), nil, nil)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Recognize(ctx, testImage(), nil)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, fb.closed)
	_, err = e.Recognize(context.Background(), testImage(), nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestLanguagesAreSetOnlyOnChange(t *testing.T) {
	fb := &fakeBackend{}
	e, err := newEngine(Config{Languages: []string{"en", "ru"}}, fb)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.Recognize(ctx, testImage(), nil)
	require.NoError(t, err)
	_, err = e.Recognize(ctx, testImage(), []string{"en", "ru"})
	require.NoError(t, err)
	_, err = e.Recognize(ctx, testImage(), []string{"de"})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"eng", "rus"}, {"deu"}}, fb.setLangs)
}

func TestRecognizeIsSerialised(t *testing.T) {
	fb := &fakeBackend{delay: 5 * time.Millisecond}
	e, err := newEngine(DefaultConfig(), fb)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Recognize(context.Background(), testImage(), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fb.maxSeen.Load())
	assert.Equal(t, 8, fb.images)
}

func TestTesseractCodes(t *testing.T) {
	assert.Equal(t, []string{"eng", "rus"}, TesseractCodes([]string{"en", "RU", "eng", ""}))
	assert.Equal(t, []string{"chi_sim", "frk"}, TesseractCodes([]string{"zh", "frk"}))
}

func TestDefaultConfigCopiesLanguages(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, DefaultLanguages, cfg.Languages)

	cfg.Languages[0] = "de"
	assert.Equal(t, []string{"en", "ru"}, DefaultLanguages)
	assert.Equal(t, "en", DefaultConfig().Languages[0])
}

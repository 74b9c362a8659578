// Package ocr wraps the tesseract engine behind a Recognizer capability that
// reports per-line confidences.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/docext/internal/common"
	"github.com/MeKo-Tech/docext/internal/raster"
)

// DefaultLineReviewThreshold flags lines recognised with lower confidence.
const DefaultLineReviewThreshold = 0.8

// ErrClosed is returned by an Engine after Close.
var ErrClosed = errors.New("ocr engine closed")

// Line is one recognised text line.
type Line struct {
	BBox        common.Box `json:"bbox"`
	Text        string     `json:"text"`
	Confidence  float64    `json:"confidence"`
	NeedsReview bool       `json:"needs_review"`
}

// Result is the outcome of recognising one raster.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // mean line confidence, 0 when nothing was found
	Lines      []Line  `json:"lines,omitempty"`
	Language   string  `json:"language"`
}

// Recognizer turns a raster into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, languages []string) (Result, error)
}

// Config configures an Engine.
type Config struct {
	Languages           []string // used when a call passes none
	LineReviewThreshold float64
	PageSegMode         gosseract.PageSegMode
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Languages:           slices.Clone(DefaultLanguages),
		LineReviewThreshold: DefaultLineReviewThreshold,
		PageSegMode:         gosseract.PSM_AUTO,
	}
}

// backend is the subset of the tesseract client the engine drives.
type backend interface {
	SetLanguage(langs ...string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	SetImageFromBytes(data []byte) error
	GetBoundingBoxes(level gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	Close() error
}

// Engine is a tesseract-backed Recognizer. It is created once, shared by
// pipelines and closed by its owner. Calls are serialised because the
// underlying client holds per-image state.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	backend backend
	langs   string
	closed  bool
}

// NewEngine starts a tesseract client.
func NewEngine(cfg Config) (*Engine, error) {
	e, err := newEngine(cfg, gosseract.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tesseract: %w", err)
	}
	return e, nil
}

func newEngine(cfg Config, b backend) (*Engine, error) {
	d := DefaultConfig()
	if len(cfg.Languages) == 0 {
		cfg.Languages = d.Languages
	}
	if cfg.LineReviewThreshold <= 0 {
		cfg.LineReviewThreshold = d.LineReviewThreshold
	}
	if err := b.SetPageSegMode(cfg.PageSegMode); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	e := &Engine{cfg: cfg, backend: b}
	if err := e.useLanguages(cfg.Languages); err != nil {
		_ = b.Close()
		return nil, err
	}
	slog.Debug("OCR engine ready", "languages", cfg.Languages)
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Recognize runs line-level recognition on img. The context is checked
// before the engine lock is taken and again once it is held.
func (e *Engine) Recognize(ctx context.Context, img image.Image, languages []string) (Result, error) {
	if img == nil {
		return Result{}, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(languages) == 0 {
		languages = e.cfg.Languages
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Result{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := e.useLanguages(languages); err != nil {
		return Result{}, err
	}
	if err := e.backend.SetImageFromBytes(data); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	boxes, err := e.backend.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return Result{}, fmt.Errorf("recognize lines: %w", err)
	}
	return buildResult(boxes, e.cfg.LineReviewThreshold, DetectorForLanguages(languages)), nil
}

// useLanguages switches the client's languages; tesseract reinitialises on
// every change so repeated sets are skipped. Callers hold e.mu or own e
// exclusively.
func (e *Engine) useLanguages(langs []string) error {
	codes := TesseractCodes(langs)
	key := strings.Join(codes, "+")
	if key == e.langs {
		return nil
	}
	if err := e.backend.SetLanguage(codes...); err != nil {
		return fmt.Errorf("set languages %s: %w", key, err)
	}
	e.langs = key
	return nil
}

// Close releases the tesseract client. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.backend.Close()
}

func buildResult(boxes []gosseract.BoundingBox, reviewBelow float64, d Detector) Result {
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := min(max(b.Confidence/100, 0), 1)
		lines = append(lines, Line{
			BBox:        common.BoxFromRect(b.Box),
			Text:        text,
			Confidence:  conf,
			NeedsReview: conf < reviewBelow,
		})
	}
	res := Result{Lines: lines}
	texts := make([]string, len(lines))
	var sum float64
	for i, l := range lines {
		texts[i] = l.Text
		sum += l.Confidence
	}
	if len(lines) > 0 {
		res.Confidence = sum / float64(len(lines))
	}
	res.Text = strings.Join(texts, "\n")
	res.Language = d.Detect(res.Text)
	return res
}

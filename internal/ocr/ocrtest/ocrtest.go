// Package ocrtest provides a scripted ocr.Recognizer for tests.
package ocrtest

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/docext/internal/ocr"
)

// Recognizer returns canned results. Func takes precedence over Result and
// Err when set.
type Recognizer struct {
	Func   func(ctx context.Context, img image.Image, languages []string) (ocr.Result, error)
	Result ocr.Result
	Err    error

	mu    sync.Mutex
	calls []image.Rectangle
}

// Recognize records the call and returns the scripted outcome.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image, languages []string) (ocr.Result, error) {
	r.mu.Lock()
	if img != nil {
		r.calls = append(r.calls, img.Bounds())
	} else {
		r.calls = append(r.calls, image.Rectangle{})
	}
	r.mu.Unlock()

	if r.Func != nil {
		return r.Func(ctx, img, languages)
	}
	return r.Result, r.Err
}

// Calls returns the bounds of every image passed to Recognize.
func (r *Recognizer) Calls() []image.Rectangle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]image.Rectangle(nil), r.calls...)
}

// Text returns a recognizer that yields text as a single line with the given
// confidence.
func Text(text string, confidence float64) *Recognizer {
	return &Recognizer{Result: ocr.Result{
		Text:       text,
		Confidence: confidence,
		Lines:      []ocr.Line{{Text: text, Confidence: confidence, NeedsReview: confidence < ocr.DefaultLineReviewThreshold}},
		Language:   ocr.DetectLanguage(text),
	}}
}

var _ ocr.Recognizer = (*Recognizer)(nil)

// Package common holds the small value types shared by the extraction
// packages and a stage timer.
package common

import (
	"fmt"
	"image"
)

// Source tells where a piece of text came from.
type Source int

const (
	SourceDigital Source = iota
	SourceOCR
)

func (s Source) String() string {
	switch s {
	case SourceDigital:
		return "digital"
	case SourceOCR:
		return "ocr"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(b []byte) error {
	switch string(b) {
	case "digital":
		*s = SourceDigital
	case "ocr":
		*s = SourceOCR
	default:
		return fmt.Errorf("unknown source %q", b)
	}
	return nil
}

// Box is an axis-aligned rectangle given by its top-left corner and size,
// in the coordinates of the page it was found on.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// BoxFromRect converts an image rectangle.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X: float64(r.Min.X), Y: float64(r.Min.Y), W: float64(r.Dx()), H: float64(r.Dy())}
}

// Rect returns the box as an image rectangle, truncating fractions.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X), int(b.Y), int(b.X+b.W), int(b.Y+b.H))
}

// Union returns the smallest box containing b and o. An empty box is the
// identity.
func (b Box) Union(o Box) Box {
	if b.W == 0 && b.H == 0 {
		return o
	}
	if o.W == 0 && o.H == 0 {
		return b
	}
	x0, y0 := min(b.X, o.X), min(b.Y, o.Y)
	x1, y1 := max(b.X+b.W, o.X+o.W), max(b.Y+b.H, o.Y+o.H)
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

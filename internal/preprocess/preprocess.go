// Package preprocess cleans up page rasters before recognition.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
)

// Stage names in cascade order.
const (
	StageGrayscale = "grayscale"
	StageDenoise   = "denoise"
	StageDeskew    = "deskew"
	StageContrast  = "contrast"
	StageBinarize  = "binarize"
)

// Stage is one named step of the cascade.
type Stage interface {
	Name() string
	Apply(img image.Image) (image.Image, error)
}

// StageError reports a failed stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("preprocess stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Config tunes the individual stages.
type Config struct {
	DenoiseSigma  float64 // intensity distance at which neighbour weights fall off
	MinSkewAngle  float64 // degrees; smaller skews are left alone
	MaxSkewAngle  float64 // degrees; larger angles belong to rotation correction
	ContrastTiles int
	ContrastClip  float64
}

// DefaultConfig returns the default stage parameters.
func DefaultConfig() Config {
	return Config{
		DenoiseSigma:  20,
		MinSkewAngle:  0.5,
		MaxSkewAngle:  45,
		ContrastTiles: 8,
		ContrastClip:  2.0,
	}
}

// Preprocessor runs a prefix of its ordered stages, chosen by Level.
type Preprocessor struct {
	stages []Stage
}

// New builds the standard cascade: grayscale, denoise, deskew, contrast,
// binarize.
func New(cfg Config) *Preprocessor {
	d := DefaultConfig()
	if cfg.DenoiseSigma <= 0 {
		cfg.DenoiseSigma = d.DenoiseSigma
	}
	if cfg.MinSkewAngle <= 0 {
		cfg.MinSkewAngle = d.MinSkewAngle
	}
	if cfg.MaxSkewAngle <= 0 {
		cfg.MaxSkewAngle = d.MaxSkewAngle
	}
	if cfg.ContrastTiles <= 0 {
		cfg.ContrastTiles = d.ContrastTiles
	}
	if cfg.ContrastClip <= 0 {
		cfg.ContrastClip = d.ContrastClip
	}
	return &Preprocessor{stages: []Stage{
		grayscaleStage{},
		newDenoiseStage(cfg.DenoiseSigma),
		deskewStage{minAngle: cfg.MinSkewAngle, maxAngle: cfg.MaxSkewAngle},
		contrastStage{tiles: cfg.ContrastTiles, clip: cfg.ContrastClip},
		binarizeStage{},
	}}
}

// Stages returns the names of all stages in order.
func (p *Preprocessor) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Preprocess runs the stages selected by level. Every attempted stage is
// recorded, including one that failed; a failed stage passes its input on.
func (p *Preprocessor) Preprocess(img image.Image, level Level) (image.Image, []string) {
	n := min(level.stageCount(), len(p.stages))
	applied := make([]string, 0, n)
	cur := img
	for _, s := range p.stages[:n] {
		applied = append(applied, s.Name())
		out, err := runStage(s, cur)
		if err != nil {
			slog.Warn("Preprocessing stage failed", "stage", s.Name(), "error", err)
			continue
		}
		cur = out
	}
	return cur, applied
}

func runStage(s Stage, img image.Image) (out image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &StageError{Stage: s.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if img == nil {
		return nil, &StageError{Stage: s.Name(), Err: errors.New("nil image")}
	}
	out, err = s.Apply(img)
	if err != nil {
		return nil, &StageError{Stage: s.Name(), Err: err}
	}
	return out, nil
}

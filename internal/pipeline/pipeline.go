// Package pipeline turns a PDF or raster document into text, tables and a
// quality verdict. Each page is either taken from its embedded text or
// rasterized, rotation-corrected, preprocessed, recognized and cleaned.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/MeKo-Tech/docext/internal/cache"
	"github.com/MeKo-Tech/docext/internal/ocr"
	"github.com/MeKo-Tech/docext/internal/pdf"
	"github.com/MeKo-Tech/docext/internal/postprocess"
	"github.com/MeKo-Tech/docext/internal/preprocess"
	"github.com/MeKo-Tech/docext/internal/quality"
	"github.com/MeKo-Tech/docext/internal/rotation"
	"github.com/MeKo-Tech/docext/internal/tables"
)

// DefaultCacheTTL is how long cached results stay valid.
const DefaultCacheTTL = 24 * time.Hour

// Config holds the configuration of every stage.
type Config struct {
	Quality     quality.Config
	Rotation    rotation.Config
	Preprocess  preprocess.Config
	OCR         ocr.Config
	Tables      tables.Config
	PostProcess postprocess.Config
	DPI         float64 // rasterization resolution for scanned PDF pages
	DisableOCR  bool    // scanned pages get the placeholder
	CacheTTL    time.Duration
}

// DefaultConfig returns a config with component defaults.
func DefaultConfig() Config {
	return Config{
		Quality:     quality.DefaultConfig(),
		Rotation:    rotation.DefaultConfig(),
		Preprocess:  preprocess.DefaultConfig(),
		OCR:         ocr.DefaultConfig(),
		Tables:      tables.DefaultConfig(),
		PostProcess: postprocess.DefaultConfig(),
		DPI:         pdf.DefaultDPI,
		CacheTTL:    DefaultCacheTTL,
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg         Config
	recognizer  ocr.Recognizer
	rasterizers []pdf.Rasterizer
	store       cache.Store
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithLanguages sets the default recognition languages.
func (b *Builder) WithLanguages(langs []string) *Builder {
	if len(langs) > 0 {
		b.cfg.OCR.Languages = slices.Clone(langs)
	}
	return b
}

// WithDPI sets the rasterization resolution.
func (b *Builder) WithDPI(dpi float64) *Builder {
	if dpi > 0 {
		b.cfg.DPI = dpi
	}
	return b
}

// WithRotation enables or disables rotation correction.
func (b *Builder) WithRotation(enabled bool) *Builder {
	b.cfg.Rotation.Enabled = enabled
	return b
}

// WithRotationThreshold sets the rotation confidence threshold.
func (b *Builder) WithRotationThreshold(th float64) *Builder {
	if th > 0 {
		b.cfg.Rotation.ConfidenceThreshold = th
	}
	return b
}

// WithReviewThreshold sets the score below which results need review.
func (b *Builder) WithReviewThreshold(th float64) *Builder {
	if th > 0 {
		b.cfg.PostProcess.ReviewThreshold = th
	}
	return b
}

// WithRecognizer injects the recognizer shared by page OCR and table
// cells. The caller keeps ownership of it.
func (b *Builder) WithRecognizer(r ocr.Recognizer) *Builder {
	b.recognizer = r
	return b
}

// WithoutOCR disables recognition entirely.
func (b *Builder) WithoutOCR() *Builder {
	b.cfg.DisableOCR = true
	return b
}

// WithRasterizer replaces the default rasterizer chain with r.
func (b *Builder) WithRasterizer(r pdf.Rasterizer) *Builder {
	if r != nil {
		b.rasterizers = []pdf.Rasterizer{r}
	}
	return b
}

// WithCache enables result caching. A non-positive ttl keeps the default.
func (b *Builder) WithCache(store cache.Store, ttl time.Duration) *Builder {
	b.store = store
	if ttl > 0 {
		b.cfg.CacheTTL = ttl
	}
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if b.cfg.DPI <= 0 {
		return errors.New("dpi must be > 0")
	}
	if b.cfg.Quality.CharRatioThreshold > 1 {
		return errors.New("quality char ratio threshold must be <= 1")
	}
	if b.cfg.PostProcess.ReviewThreshold > 1 {
		return errors.New("review threshold must be <= 1")
	}
	if b.cfg.PostProcess.SpecialCharRatio > 1 {
		return errors.New("special char ratio must be <= 1")
	}
	if b.cfg.OCR.LineReviewThreshold > 1 {
		return errors.New("line review threshold must be <= 1")
	}
	if b.cfg.Tables.MinTableArea >= 1 {
		return errors.New("minimum table area must be < 1")
	}
	return nil
}

// Pipeline runs extractions. It is safe for concurrent use when its
// recognizer is; the tesseract engine serialises its own calls.
type Pipeline struct {
	cfg          Config
	assessor     *quality.Assessor
	extractor    *pdf.StandardExtractor
	rotator      *rotation.Corrector
	preprocessor *preprocess.Preprocessor
	post         *postprocess.PostProcessor
	tables       *tables.Extractor
	recognizer   ocr.Recognizer
	rasterizers  []pdf.Rasterizer
	store        cache.Store
	owned        io.Closer
}

// Build initializes the pipeline components. Without an injected
// recognizer a tesseract engine is created once here and owned by the
// pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:          b.cfg,
		assessor:     quality.NewAssessor(b.cfg.Quality),
		extractor:    pdf.NewStandardExtractor(),
		rotator:      rotation.NewCorrector(b.cfg.Rotation),
		preprocessor: preprocess.New(b.cfg.Preprocess),
		post:         postprocess.New(b.cfg.PostProcess),
		rasterizers:  b.rasterizers,
		store:        b.store,
	}
	if len(p.rasterizers) == 0 {
		p.rasterizers = []pdf.Rasterizer{pdf.NewFitzRasterizer(b.cfg.DPI), pdf.EmbeddedImageRasterizer{}}
	}

	if !b.cfg.DisableOCR {
		p.recognizer = b.recognizer
		if p.recognizer == nil {
			engine, err := ocr.NewEngine(b.cfg.OCR)
			if err != nil {
				return nil, fmt.Errorf("init ocr engine: %w", err)
			}
			p.recognizer = engine
			p.owned = engine
		}
	}

	tcfg := b.cfg.Tables
	if len(tcfg.Languages) == 0 {
		tcfg.Languages = b.cfg.OCR.Languages
	}
	p.tables = tables.New(tcfg, p.recognizer)
	return p, nil
}

// Close releases the engine created by Build. Injected recognizers and
// cache stores belong to the caller.
func (p *Pipeline) Close() error {
	if p.owned == nil {
		return nil
	}
	err := p.owned.Close()
	p.owned = nil
	return err
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]any {
	return map[string]any{
		"ocr_enabled":         p.recognizer != nil,
		"languages":           p.cfg.OCR.Languages,
		"dpi":                 p.cfg.DPI,
		"rotation_enabled":    p.cfg.Rotation.Enabled,
		"preprocess_stages":   p.preprocessor.Stages(),
		"quality_threshold":   p.assessor.Config().QualityThreshold,
		"char_ratio":          p.assessor.Config().CharRatioThreshold,
		"review_threshold":    p.cfg.PostProcess.ReviewThreshold,
		"cache_enabled":       p.store != nil,
		"supported_filetypes": SupportedFileTypes,
	}
}

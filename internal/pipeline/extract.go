package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/docext/internal/cache"
	"github.com/MeKo-Tech/docext/internal/common"
	"github.com/MeKo-Tech/docext/internal/ocr"
	"github.com/MeKo-Tech/docext/internal/pdf"
	"github.com/MeKo-Tech/docext/internal/preprocess"
	"github.com/MeKo-Tech/docext/internal/raster"
	"github.com/MeKo-Tech/docext/internal/tables"
)

var (
	errOCRDisabled      = errors.New("ocr disabled")
	errEmptyRecognition = errors.New("recognition returned no text")
)

// pageState names the steps a page moves through.
type pageState string

const (
	stateUnprocessed     pageState = "unprocessed"
	stateDigital         pageState = "digitally_extracted"
	stateRasterized      pageState = "rasterized"
	stateRotationChecked pageState = "rotation_checked"
	statePreprocessed    pageState = "preprocessed"
	stateRecognized      pageState = "recognized"
	stateCleaned         pageState = "cleaned"
)

func logState(page int, s pageState, args ...any) {
	slog.Debug("Page state", append([]any{"page", page, "state", string(s)}, args...)...)
}

// document is an opened source. Image inputs have a single page without
// embedded text.
type document struct {
	fileType FileType
	path     string // decrypted copy for protected PDFs
	pages    []pdf.PageText
	image    image.Image
	cleanup  func()
}

// Extract runs the whole pipeline on one document. Only input errors,
// failure to open the document and cancellation are returned; everything
// else degrades the result instead.
func (p *Pipeline) Extract(ctx context.Context, path string, opts Options) (*ExtractionResult, error) {
	ft, err := ResolveFileType(path, opts.FileType)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = p.normalizeOptions(opts)

	key := p.cacheKey(path, ft, opts)
	if res := p.loadCached(ctx, key); res != nil {
		slog.Debug("Serving cached result", "path", path)
		extractionsTotal.WithLabelValues("cached").Inc()
		return res, nil
	}

	timer := common.NewTimer()
	doc, err := p.open(path, ft, opts.Credentials)
	if err != nil {
		extractionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	defer doc.cleanup()
	timer.Lap("open")

	run, err := p.processPages(ctx, doc, opts)
	if err != nil {
		extractionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	timer.Lap("pages")

	var found []tables.Table
	if opts.ExtractTables {
		found, err = p.extractTables(ctx, doc, run.pages, run.rasters)
		if err != nil {
			extractionsTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		timer.Lap("tables")
	}

	res := p.aggregate(run.pages, found)
	res.ExtractionTimeMs = timer.ElapsedMs()
	slog.Debug("Extraction finished",
		"path", path,
		"pages", res.PagesProcessed,
		"method", res.Method,
		"needs_review", res.NeedsReview,
		"timing", timer.String(),
	)
	observe(res, timer.Elapsed())
	if run.degraded > 0 {
		slog.Debug("Not caching degraded result", "path", path, "degraded_pages", run.degraded)
	} else {
		p.saveCached(ctx, key, res)
	}
	return res, nil
}

func (p *Pipeline) normalizeOptions(opts Options) Options {
	if opts.Level == 0 {
		opts.Level = preprocess.Medium
	}
	if len(opts.Languages) == 0 {
		opts.Languages = p.cfg.OCR.Languages
	}
	if len(opts.Languages) == 0 {
		opts.Languages = ocr.DefaultLanguages
	}
	opts.Languages = slices.Clone(opts.Languages)
	if opts.Progress == nil {
		opts.Progress = NoOpProgressCallback{}
	}
	return opts
}

func (p *Pipeline) open(path string, ft FileType, creds pdf.Credentials) (*document, error) {
	if ft.IsImage() {
		img, err := raster.LoadImage(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpenDocument, err)
		}
		return &document{
			fileType: ft,
			path:     path,
			pages:    []pdf.PageText{{Number: 1}},
			image:    img,
			cleanup:  func() {},
		}, nil
	}

	readable, cleanup, err := pdf.Decrypt(path, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenDocument, err)
	}
	pages, err := p.extractor.ExtractPages(readable)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %w", ErrOpenDocument, err)
	}
	if len(pages) == 0 {
		cleanup()
		return nil, fmt.Errorf("%w: document has no pages", ErrOpenDocument)
	}
	return &document{fileType: ft, path: readable, pages: pages, cleanup: cleanup}, nil
}

// pageRun is the outcome of the page pass.
type pageRun struct {
	pages    []PageResult
	rasters  map[int]image.Image // upright rasters, kept only for the table pass
	degraded int                 // pages that fell back after a failed stage
}

// pageOutcome is the outcome of one page.
type pageOutcome struct {
	result   PageResult
	upright  image.Image
	degraded bool
}

// processPages walks the pages in order. The raster handle is closed
// before it returns, so the table pass never competes with it.
func (p *Pipeline) processPages(ctx context.Context, doc *document, opts Options) (*pageRun, error) {
	n := len(doc.pages)
	opts.Progress.OnStart(n)
	defer opts.Progress.OnComplete()

	// A document whose embedded text is too thin or garbled as a whole is
	// re-read page by page with OCR wherever the page text fails on its own.
	fallback := false
	if !doc.fileType.IsImage() && p.recognizer != nil {
		texts := make([]string, n)
		for i, pg := range doc.pages {
			texts[i] = pg.Text
		}
		fallback = p.assessor.NeedsOCRFallback(strings.Join(texts, pdf.PageSeparator), n)
		if fallback {
			slog.Debug("Embedded text below quality thresholds, OCR fallback enabled")
		}
	}

	src := &pageSource{doc: doc, rasterizers: p.rasterizers}
	defer src.Close()

	run := &pageRun{pages: make([]PageResult, 0, n), rasters: make(map[int]image.Image)}
	for i, pg := range doc.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logState(pg.Number, stateUnprocessed)

		out, err := p.processPage(ctx, src, pg, fallback, opts)
		if err != nil {
			opts.Progress.OnError(pg.Number, err)
			return nil, err
		}
		run.pages = append(run.pages, out.result)
		if out.degraded {
			run.degraded++
		}
		if out.upright != nil && opts.ExtractTables {
			run.rasters[pg.Number] = out.upright
		}
		opts.Progress.OnProgress(i+1, n)
	}
	return run, nil
}

// processPage returns the page result and, for rasterized pages, the
// upright raster. The error is non-nil only on cancellation.
func (p *Pipeline) processPage(ctx context.Context, src *pageSource, pg pdf.PageText, fallback bool, opts Options) (pageOutcome, error) {
	digital := PageResult{PageNumber: pg.Number, Source: common.SourceDigital, Text: pg.Text, Confidence: 1}
	if pg.HasText() && (!fallback || !p.assessor.NeedsOCRFallback(pg.Text, 1)) {
		logState(pg.Number, stateDigital, "chars", utf8.RuneCountInString(pg.Text))
		return pageOutcome{result: digital}, nil
	}

	img, err := src.Render(pg.Number)
	if err != nil {
		slog.Warn("Page rasterization failed", "page", pg.Number, "error", err)
		opts.Progress.OnError(pg.Number, err)
		return pageOutcome{result: degrade(pg, digital, PageResult{PageNumber: pg.Number}), degraded: true}, nil
	}
	b := img.Bounds()
	logState(pg.Number, stateRasterized, "width", b.Dx(), "height", b.Dy())

	res, upright, err := p.ocrPage(ctx, pg.Number, img, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pageOutcome{}, ctxErr
		}
		if !errors.Is(err, errOCRDisabled) {
			slog.Warn("Page recognition failed", "page", pg.Number, "error", err)
			opts.Progress.OnError(pg.Number, err)
		}
		return pageOutcome{result: degrade(pg, digital, res), upright: upright, degraded: true}, nil
	}
	return pageOutcome{result: res, upright: upright}, nil
}

// ocrPage takes a raster through rotation, preprocessing, recognition and
// cleaning. On failure the returned page records the stages that ran.
func (p *Pipeline) ocrPage(ctx context.Context, number int, img image.Image, opts Options) (PageResult, image.Image, error) {
	res := PageResult{PageNumber: number, Source: common.SourceOCR}

	upright, angle := p.rotator.DetectAndCorrect(img)
	res.RotationApplied = angle
	logState(number, stateRotationChecked, "angle", angle)

	if p.recognizer == nil {
		return res, upright, errOCRDisabled
	}

	prepared, applied := p.preprocessor.Preprocess(upright, opts.Level)
	res.PreprocessingApplied = applied
	logState(number, statePreprocessed, "stages", applied)

	out, err := p.recognizer.Recognize(ctx, prepared, opts.Languages)
	if err != nil {
		return res, upright, fmt.Errorf("recognize page %d: %w", number, err)
	}
	logState(number, stateRecognized, "lines", len(out.Lines), "confidence", out.Confidence)

	text := p.post.Clean(out.Text)
	if text == "" {
		return res, upright, errEmptyRecognition
	}
	res.Text = text
	res.Confidence = out.Confidence
	res.Lines = out.Lines
	res.Language = out.Language
	logState(number, stateCleaned, "chars", utf8.RuneCountInString(text))
	return res, upright, nil
}

// degrade keeps embedded text when there is any, otherwise the page gets
// the placeholder with zero confidence.
func degrade(pg pdf.PageText, digital, partial PageResult) PageResult {
	if pg.HasText() {
		logState(pg.Number, stateDigital, "fallback", true)
		return digital
	}
	partial.Source = common.SourceOCR
	partial.Text = Placeholder
	partial.Confidence = 0
	partial.Lines = nil
	partial.Language = ""
	return partial
}

// pageSource renders pages on demand. PDF rasterizers are opened on first
// use, trying each in order.
type pageSource struct {
	doc         *document
	rasterizers []pdf.Rasterizer

	opened  pdf.RasterDocument
	openErr error
	tried   bool
}

func (s *pageSource) Render(page int) (image.Image, error) {
	if s.doc.image != nil {
		return s.doc.image, nil
	}
	if !s.tried {
		s.tried = true
		s.opened, s.openErr = openRaster(s.doc.path, s.rasterizers)
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.opened.Render(page)
}

func (s *pageSource) Close() {
	if s.opened == nil {
		return
	}
	if err := s.opened.Close(); err != nil {
		slog.Warn("Closing raster document", "error", err)
	}
	s.opened = nil
}

func openRaster(path string, rasterizers []pdf.Rasterizer) (pdf.RasterDocument, error) {
	var errs []error
	for _, r := range rasterizers {
		d, err := r.Open(path)
		if err == nil {
			return d, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("no rasterizer could open the document: %w", errors.Join(errs...))
}

// extractTables reads tables from embedded spans on digital pages and from
// ruling lines on rasterized ones. A failing page contributes no tables.
func (p *Pipeline) extractTables(ctx context.Context, doc *document, pages []PageResult, rasters map[int]image.Image) ([]tables.Table, error) {
	var found []tables.Table
	for i, pr := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pr.Source == common.SourceDigital {
			found = append(found, p.tables.ExtractDigital(pr.PageNumber, doc.pages[i].Spans)...)
			continue
		}
		img, ok := rasters[pr.PageNumber]
		if !ok {
			continue
		}
		ts, err := p.tables.ExtractScanned(ctx, pr.PageNumber, img)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			slog.Warn("Table extraction failed", "page", pr.PageNumber, "error", err)
			continue
		}
		found = append(found, ts...)
	}
	slog.Debug("Table pass finished", "tables", len(found))
	return found, nil
}

func (p *Pipeline) aggregate(pages []PageResult, found []tables.Table) *ExtractionResult {
	res := &ExtractionResult{
		PagesProcessed: len(pages),
		PagesWithOCR:   []int{},
		PagesWithText:  []int{},
		Issues:         []string{},
		Tables:         found,
		Pages:          pages,
	}
	if res.Tables == nil {
		res.Tables = []tables.Table{}
	}

	// Embedded text is joined verbatim; only recognized pages were cleaned.
	texts := make([]string, len(pages))
	var ocrTexts []string
	sum, ocrSum := 0.0, 0.0
	placeholders := 0
	for i, pr := range pages {
		texts[i] = pr.Text
		sum += pr.Confidence
		if pr.Source == common.SourceOCR {
			res.PagesWithOCR = append(res.PagesWithOCR, pr.PageNumber)
			ocrTexts = append(ocrTexts, pr.Text)
			ocrSum += pr.Confidence
		} else {
			res.PagesWithText = append(res.PagesWithText, pr.PageNumber)
		}
		if pr.Text == Placeholder {
			placeholders++
		}
	}
	res.Text = strings.Join(texts, pdf.PageSeparator)
	if len(pages) > 0 {
		res.Confidence = sum / float64(len(pages))
	}

	// Quality penalties target recognition artifacts, so they only score
	// OCR pages. Digital pages count at full quality.
	res.QualityScore = res.Confidence
	if n := len(ocrTexts); n > 0 {
		q := p.post.CalculateQuality(strings.Join(ocrTexts, pdf.PageSeparator), ocrSum/float64(n))
		res.QualityScore = (q.Score*float64(n) + float64(len(pages)-n)) / float64(len(pages))
		res.NeedsReview = q.NeedsReview
		res.Issues = append(res.Issues, q.Issues...)
	}
	if placeholders > 0 {
		res.Issues = append(res.Issues, IssueNoTextDetected)
		res.NeedsReview = true
	}

	switch len(res.PagesWithOCR) {
	case 0:
		res.Method = MethodStandard
	case len(pages):
		res.Method = MethodOCR
	default:
		res.Method = MethodHybrid
	}
	res.Metadata = p.post.ExtractMetadata(res.Text)
	return res
}

// cacheKey is empty when caching is off or the document needed a password.
func (p *Pipeline) cacheKey(path string, ft FileType, opts Options) string {
	if p.store == nil || !opts.Credentials.Empty() {
		return ""
	}
	sum, err := cache.DocumentKey(path, opts.cacheKeyParts(ft)...)
	if err != nil {
		slog.Debug("Cache key unavailable", "path", path, "error", err)
		return ""
	}
	return cache.Key("result", sum)
}

func (p *Pipeline) loadCached(ctx context.Context, key string) *ExtractionResult {
	if key == "" {
		return nil
	}
	data, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("Cache lookup failed", "error", err)
		}
		return nil
	}
	var res ExtractionResult
	if err := json.Unmarshal(data, &res); err != nil {
		slog.Warn("Discarding unreadable cache entry", "error", err)
		return nil
	}
	res.Cached = true
	return &res
}

func (p *Pipeline) saveCached(ctx context.Context, key string, res *ExtractionResult) {
	if key == "" {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		slog.Warn("Encoding result for cache failed", "error", err)
		return
	}
	if err := p.store.Set(ctx, key, data, p.cfg.CacheTTL); err != nil {
		slog.Warn("Cache store failed", "error", err)
	}
}

package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/docext/internal/common"
	"github.com/MeKo-Tech/docext/internal/ocr"
	"github.com/MeKo-Tech/docext/internal/pdf"
	"github.com/MeKo-Tech/docext/internal/postprocess"
	"github.com/MeKo-Tech/docext/internal/preprocess"
	"github.com/MeKo-Tech/docext/internal/tables"
)

var (
	// ErrUnsupportedFileType rejects a file type before any I/O happens.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrOpenDocument means the source could not be opened at all.
	ErrOpenDocument = errors.New("cannot open document")
)

// Placeholder is the text of a page whose recognition produced nothing.
const Placeholder = "[no text detected]"

// IssueNoTextDetected is reported when at least one page fell back to the
// placeholder.
const IssueNoTextDetected = "no text detected on some pages"

// Extraction methods reported in ExtractionResult.Method.
const (
	MethodStandard = "standard"
	MethodOCR      = "ocr"
	MethodHybrid   = "hybrid"
)

// FileType is a supported input format.
type FileType string

// Supported file types.
const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypeJPEG FileType = "jpeg"
	FileTypePNG  FileType = "png"
	FileTypeTIFF FileType = "tiff"
	FileTypeBMP  FileType = "bmp"
)

// SupportedFileTypes lists every accepted FileType.
var SupportedFileTypes = []FileType{FileTypePDF, FileTypeJPG, FileTypeJPEG, FileTypePNG, FileTypeTIFF, FileTypeBMP}

// ParseFileType validates a declared type, case-insensitively. "tif" is an
// alias of tiff.
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	if ft == "tif" {
		ft = FileTypeTIFF
	}
	if !slices.Contains(SupportedFileTypes, ft) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, s)
	}
	return ft, nil
}

// ResolveFileType returns declared when set, otherwise the type implied by
// the extension of path.
func ResolveFileType(path, declared string) (FileType, error) {
	if declared == "" {
		declared = filepath.Ext(path)
	}
	return ParseFileType(declared)
}

// IsImage reports whether the type is a single raster page.
func (f FileType) IsImage() bool {
	return f != FileTypePDF
}

// Options control one extraction run.
type Options struct {
	FileType      string // empty: inferred from the extension
	Level         preprocess.Level
	Languages     []string
	ExtractTables bool
	Credentials   pdf.Credentials
	Progress      ProgressCallback // page-level progress, optional
}

// DefaultOptions returns medium preprocessing with the default languages.
func DefaultOptions() Options {
	return Options{
		Level:     preprocess.Medium,
		Languages: slices.Clone(ocr.DefaultLanguages),
	}
}

// cacheKeyParts lists every option that changes the result.
func (o Options) cacheKeyParts(ft FileType) []string {
	return []string{
		string(ft),
		o.Level.String(),
		strings.Join(o.Languages, ","),
		fmt.Sprintf("tables=%t", o.ExtractTables),
	}
}

// PageResult is the outcome for one page.
type PageResult struct {
	PageNumber           int           `json:"page_number"`
	Source               common.Source `json:"source"`
	Text                 string        `json:"text"`
	Confidence           float64       `json:"confidence"`
	RotationApplied      int           `json:"rotation_applied"`
	PreprocessingApplied []string      `json:"preprocessing_applied,omitempty"`
	Lines                []ocr.Line    `json:"lines,omitempty"`
	Language             string        `json:"language,omitempty"`
}

// ExtractionResult is the document-level outcome. QualityScore is in [0, 1].
type ExtractionResult struct {
	Text             string            `json:"text"`
	Confidence       float64           `json:"confidence"`
	PagesProcessed   int               `json:"pages_processed"`
	PagesWithOCR     []int             `json:"pages_with_ocr"`
	PagesWithText    []int             `json:"pages_with_text"`
	ExtractionTimeMs int64             `json:"extraction_time_ms"`
	NeedsReview      bool              `json:"needs_review"`
	QualityScore     float64           `json:"quality_score"`
	Issues           []string          `json:"issues"`
	Tables           []tables.Table    `json:"tables"`
	Pages            []PageResult      `json:"pages"`
	Method           string            `json:"method"`
	Metadata         postprocess.Hints `json:"metadata"`
	Cached           bool              `json:"cached,omitempty"`
}

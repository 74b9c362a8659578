package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decoders for extracted images
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

// DefaultDPI is the resolution pages are rendered at for recognition.
const DefaultDPI = 200.0

// ErrNoPageImage is returned when a page has nothing to rasterize.
var ErrNoPageImage = errors.New("page has no image")

// Rasterizer opens a PDF for page rendering.
type Rasterizer interface {
	Open(path string) (RasterDocument, error)
}

// RasterDocument renders pages of an open PDF. Page numbers are 1-based.
type RasterDocument interface {
	NumPage() int
	Render(page int) (image.Image, error)
	Close() error
}

// FitzRasterizer renders whole pages with MuPDF.
type FitzRasterizer struct {
	DPI float64
}

// NewFitzRasterizer returns a rasterizer at dpi, or DefaultDPI when dpi is
// not positive.
func NewFitzRasterizer(dpi float64) *FitzRasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &FitzRasterizer{DPI: dpi}
}

// Open implements Rasterizer.
func (r *FitzRasterizer) Open(path string) (RasterDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	return &fitzDocument{doc: doc, dpi: r.DPI}, nil
}

type fitzDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
	dpi float64
}

func (d *fitzDocument) NumPage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.NumPage()
}

func (d *fitzDocument) Render(page int) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if page < 1 || page > d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	img, err := d.doc.ImageDPI(page-1, d.dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}

// EmbeddedImageRasterizer uses the largest image embedded in each page as
// its raster. It suits scanner output, where every page is one image, and
// needs no native renderer.
type EmbeddedImageRasterizer struct{}

// Open implements Rasterizer. All images are extracted up front.
func (EmbeddedImageRasterizer) Open(path string) (RasterDocument, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	images, err := ExtractImages(path)
	if err != nil {
		return nil, err
	}
	return &embeddedDocument{pages: n, images: images}, nil
}

type embeddedDocument struct {
	pages  int
	images map[int][]image.Image
}

func (d *embeddedDocument) NumPage() int { return d.pages }

func (d *embeddedDocument) Render(page int) (image.Image, error) {
	var best image.Image
	bestArea := 0
	for _, img := range d.images[page] {
		if a := img.Bounds().Dx() * img.Bounds().Dy(); a > bestArea {
			best, bestArea = img, a
		}
	}
	if best == nil {
		return nil, fmt.Errorf("page %d: %w", page, ErrNoPageImage)
	}
	return best, nil
}

func (d *embeddedDocument) Close() error {
	d.images = nil
	return nil
}

// ExtractImages extracts every embedded image and groups them by page.
func ExtractImages(path string) (map[int][]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "docext-images-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(path, tempDir, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}
	return collectExtractedImages(tempDir)
}

// collectExtractedImages loads files named like page_<n>_... from dir.
// Unreadable files are skipped.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		page, ok := pageFromFilename(d.Name())
		if !ok {
			return nil
		}
		img, err := loadImageFile(path)
		if err != nil {
			return nil //nolint:nilerr // unreadable images are skipped
		}
		result[page] = append(result[page], img)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from our own temp dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	return img, err
}

// pageFromFilename parses the page number out of pdfcpu output names of the
// form <base>_<page>_<resource>.<ext>, where base may itself contain
// underscores.
func pageFromFilename(name string) (int, bool) {
	parts := strings.Split(strings.TrimSuffix(name, filepath.Ext(name)), "_")
	if len(parts) < 3 {
		return 0, false
	}
	n, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

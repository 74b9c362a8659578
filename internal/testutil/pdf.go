package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// PDFText is one run of text placed at (X, Y) in PDF user space
// (origin bottom-left, units of points).
type PDFText struct {
	X, Y float64
	Size float64
	Text string
}

// PDFPage lists the text runs of one page. A page without runs has no
// embedded text at all.
type PDFPage struct {
	Texts []PDFText
}

// BuildTextPDF assembles a minimal PDF with one Helvetica font whose glyphs
// all advance 500 units, so span positions are predictable.
func BuildTextPDF(pages []PDFPage) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
		strings.Join(kids, " "), len(pages)))

	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	obj(fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding"+
		" /FirstChar 32 /LastChar 126 /Widths [%s] >>", widths))

	for i, p := range pages {
		var content strings.Builder
		for _, t := range p.Texts {
			size := t.Size
			if size == 0 {
				size = 12
			}
			fmt.Fprintf(&content, "BT /F1 %.1f Tf 1 0 0 1 %.2f %.2f Tm (%s) Tj ET\n", size, t.X, t.Y, escapePDF(t.Text))
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := content.String()
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}

// ParagraphPage lays out lines top-down at 14pt spacing from the top margin.
func ParagraphPage(lines ...string) PDFPage {
	p := PDFPage{}
	for i, l := range lines {
		p.Texts = append(p.Texts, PDFText{X: 72, Y: 720 - float64(i)*14, Size: 12, Text: l})
	}
	return p
}

// WritePDF writes BuildTextPDF output into dir and returns the path.
func WritePDF(t *testing.T, dir, name string, pages []PDFPage) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, BuildTextPDF(pages), 0o600))
	return path
}

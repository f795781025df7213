package docflip

import (
	"context"
	"fmt"
	"os"
	"strings"

	rscpdf "rsc.io/pdf"
)

// RawStreamReader walks each page's content stream for text-showing
// operators without interpreting rows or layout. It tolerates damaged files
// better than the other readers and is tried last among them.
type RawStreamReader struct{}

// NewRawStreamReader creates a new RawStreamReader.
func NewRawStreamReader() *RawStreamReader {
	return &RawStreamReader{}
}

func (r *RawStreamReader) ReadPages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("parse PDF: %v", p)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat PDF: %w", err)
	}

	rd, err := rscpdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	n := rd.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, readRawPage(rd.Page(i)))
	}
	return pages, nil
}

// readRawPage returns the page's glyphs joined into lines. A page whose
// content stream cannot be decoded yields no text rather than failing the
// whole document.
func readRawPage(page rscpdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if page.V.IsNull() {
		return ""
	}
	var glyphs []pdfGlyph
	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		glyphs = append(glyphs, pdfGlyph{x: t.X, y: t.Y, text: t.S, size: t.FontSize})
	}
	if len(glyphs) == 0 {
		return ""
	}
	return joinGlyphLines(glyphs)
}

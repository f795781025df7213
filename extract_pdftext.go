package docflip

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextLayerReader reads the PDF text layer with a pure-Go parser. Each page
// is read row by row; pages whose rows carry nothing fall back to grouping
// raw glyphs by position.
type TextLayerReader struct{}

// NewTextLayerReader creates a new TextLayerReader.
func NewTextLayerReader() *TextLayerReader {
	return &TextLayerReader{}
}

func (r *TextLayerReader) ReadPages(ctx context.Context, path string) (pages []string, err error) {
	// The parser panics on some malformed object streams.
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

	pdfReader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, r.extractPageText(page))
	}
	return pages, nil
}

// pdfGlyph is a positioned run of text on a page.
type pdfGlyph struct {
	x    float64
	y    float64
	text string
	size float64
}

type pdfGlyphLine struct {
	y      float64
	glyphs []pdfGlyph
}

// extractPageText extracts text from a single PDF page using GetTextByRow,
// falling back to position-based extraction from Content().Text.
func (r *TextLayerReader) extractPageText(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err == nil && len(rows) > 0 {
		var result strings.Builder
		for _, row := range rows {
			var line strings.Builder
			gap := false
			for _, word := range row.Content {
				if word.S == "" {
					// An empty string between words marks a word boundary.
					gap = true
					continue
				}
				if gap && line.Len() > 0 && !strings.HasSuffix(line.String(), " ") {
					line.WriteString(" ")
				}
				line.WriteString(word.S)
				gap = false
			}
			if text := strings.TrimSpace(line.String()); text != "" {
				result.WriteString(text)
				result.WriteString("\n")
			}
		}
		if strings.TrimSpace(result.String()) != "" {
			return result.String()
		}
	}

	content := page.Content()
	var glyphs []pdfGlyph
	for _, t := range content.Text {
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

// joinGlyphLines groups glyphs into lines by baseline proximity and inserts
// spaces where the horizontal gap exceeds a fraction of the font size.
func joinGlyphLines(glyphs []pdfGlyph) string {
	yTolerance := 3.0
	if glyphs[0].size > 0 {
		yTolerance = glyphs[0].size * 0.3
	}

	var lines []pdfGlyphLine
	for _, g := range glyphs {
		found := false
		for i := range lines {
			if math.Abs(lines[i].y-g.y) < yTolerance {
				lines[i].glyphs = append(lines[i].glyphs, g)
				found = true
				break
			}
		}
		if !found {
			lines = append(lines, pdfGlyphLine{y: g.y, glyphs: []pdfGlyph{g}})
		}
	}

	// Top to bottom in PDF coordinates.
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].y > lines[j].y
	})

	var result strings.Builder
	for _, ln := range lines {
		sort.SliceStable(ln.glyphs, func(i, j int) bool {
			return ln.glyphs[i].x < ln.glyphs[j].x
		})

		var line strings.Builder
		var lastEnd float64
		for i, g := range ln.glyphs {
			if i > 0 {
				threshold := math.Max(g.size*0.2, 1.0)
				if g.x-lastEnd > threshold {
					line.WriteString(" ")
				}
			}
			line.WriteString(g.text)
			// Approximate advance width from the font size.
			lastEnd = g.x + float64(len([]rune(g.text)))*g.size*0.55
		}
		if text := line.String(); strings.TrimSpace(text) != "" {
			result.WriteString(text)
			result.WriteString("\n")
		}
	}
	return result.String()
}

// Package pdfrender lays out flowing text blocks on A4 pages with gofpdf.
// Text is set in the embedded Go fonts. Characters those fonts have no glyph
// for make WriteFile fail instead of producing unreadable output.
package pdfrender

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

const (
	bodyFont   = "Go"
	monoFont   = "GoMono"
	bodySize   = 11.0
	lineHeight = 5.5
	margin     = 20.0
	listIndent = 6.0
)

// ErrMissingGlyph reports text the embedded fonts cannot draw.
var ErrMissingGlyph = errors.New("pdfrender: no glyph for character")

// fontFaces maps gofpdf family and style to TrueType data.
var fontFaces = []struct {
	family, style string
	ttf           []byte
}{
	{bodyFont, "", goregular.TTF},
	{bodyFont, "B", gobold.TTF},
	{bodyFont, "I", goitalic.TTF},
	{bodyFont, "BI", gobolditalic.TTF},
	{monoFont, "", gomono.TTF},
	{monoFont, "B", gomonobold.TTF},
	{monoFont, "I", gomonoitalic.TTF},
	{monoFont, "BI", gomonobolditalic.TTF},
}

// coverage is the regular face, used to decide which runes can be drawn.
// All Go font faces share one character set.
var coverage = sync.OnceValues(func() (*sfnt.Font, error) {
	return sfnt.Parse(goregular.TTF)
})

// fixedDate is stamped into every document so identical input renders to
// identical bytes.
var fixedDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Span is a run of inline text sharing one style.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Mono   bool
	Link   string
}

// Options sets document metadata.
type Options struct {
	Title  string
	Author string
}

// Renderer accumulates blocks into a PDF document.
type Renderer struct {
	pdf     *gofpdf.Fpdf
	face    *sfnt.Font
	buf     sfnt.Buffer
	missing error
}

// New starts a document with one empty page.
func New(opts Options) *Renderer {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCreationDate(fixedDate)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("docflip", false)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	if opts.Author != "" {
		pdf.SetAuthor(opts.Author, true)
	}
	for _, f := range fontFaces {
		pdf.AddUTF8FontFromBytes(f.family, f.style, f.ttf)
	}
	pdf.SetFont(bodyFont, "", bodySize)
	pdf.AddPage()

	r := &Renderer{pdf: pdf}
	face, err := coverage()
	if err != nil {
		r.missing = fmt.Errorf("pdfrender: parse font: %w", err)
	}
	r.face = face
	return r
}

// tr expands tabs and swaps runes without a glyph for '?', remembering the
// first one so WriteFile can refuse the document.
func (r *Renderer) tr(s string) string {
	s = strings.ReplaceAll(s, "\t", "    ")
	if r.face == nil {
		return s
	}
	return strings.Map(func(c rune) rune {
		if unicode.IsControl(c) {
			return c
		}
		if idx, err := r.face.GlyphIndex(&r.buf, c); err == nil && idx != 0 {
			return c
		}
		if r.missing == nil {
			r.missing = fmt.Errorf("%w: %U %q", ErrMissingGlyph, c, c)
		}
		return '?'
	}, s)
}

// Heading writes a bold heading. Level 1 is the largest.
func (r *Renderer) Heading(level int, text string) {
	size := 12.0
	switch level {
	case 1:
		size = 18
	case 2:
		size = 15
	case 3:
		size = 13
	}
	r.pdf.Ln(2)
	r.pdf.SetFont(bodyFont, "B", size)
	r.pdf.MultiCell(0, size*0.5, r.tr(text), "", "L", false)
	r.pdf.SetFont(bodyFont, "", bodySize)
	r.pdf.Ln(2)
}

// Text writes a plain paragraph. Newlines inside text become line breaks.
func (r *Renderer) Text(text string) {
	r.Paragraph(Span{Text: text})
}

// Paragraph writes inline spans as one wrapped paragraph.
func (r *Renderer) Paragraph(spans ...Span) {
	r.writeSpans(spans)
	r.pdf.Ln(lineHeight)
	r.pdf.Ln(2)
}

// ListItem writes an item with a hanging indent. depth 0 is the outermost
// list; marker is the bullet or number shown before the text.
func (r *Renderer) ListItem(depth int, marker string, spans ...Span) {
	left := margin + float64(depth)*listIndent
	r.pdf.SetLeftMargin(left + listIndent)
	r.pdf.SetX(left)
	r.pdf.SetFont(bodyFont, "", bodySize)
	r.pdf.Write(lineHeight, r.tr(marker+" "))
	if r.pdf.GetX() < left+listIndent {
		r.pdf.SetX(left + listIndent)
	}
	r.writeSpans(spans)
	r.pdf.Ln(lineHeight)
	r.pdf.SetLeftMargin(margin)
	r.pdf.SetX(margin)
}

// Table writes rows as a grid of equal-width columns. The first row is bold.
func (r *Renderer) Table(rows [][]string) {
	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}

	pageW, pageH := r.pdf.GetPageSize()
	left, _, right, bottom := r.pdf.GetMargins()
	width := (pageW - left - right) / float64(cols)

	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(bodyFont, style, bodySize-1)

		cells := make([][]string, cols)
		lines := 1
		for c := 0; c < cols; c++ {
			var text string
			if c < len(row) {
				text = r.tr(row[c])
			}
			cells[c] = r.pdf.SplitText(text, width)
			if len(cells[c]) > lines {
				lines = len(cells[c])
			}
		}
		h := float64(lines)*lineHeight + 2
		if r.pdf.GetY()+h > pageH-bottom {
			r.pdf.AddPage()
		}

		y := r.pdf.GetY()
		for c := 0; c < cols; c++ {
			x := left + float64(c)*width
			r.pdf.Rect(x, y, width, h, "D")
			for j, ln := range cells[c] {
				r.pdf.SetXY(x+1, y+1+float64(j)*lineHeight)
				r.pdf.CellFormat(width-2, lineHeight, ln, "", 0, "L", false, 0, "")
			}
		}
		r.pdf.SetXY(left, y+h)
	}
	r.pdf.SetFont(bodyFont, "", bodySize)
	r.pdf.Ln(3)
}

// Code writes preformatted lines in a monospace font on a shaded background.
func (r *Renderer) Code(lines []string) {
	r.pdf.SetFont(monoFont, "", bodySize-2)
	r.pdf.SetFillColor(242, 242, 242)
	for _, ln := range lines {
		r.pdf.MultiCell(0, lineHeight-1, r.tr(ln), "", "L", true)
	}
	r.pdf.SetFont(bodyFont, "", bodySize)
	r.pdf.Ln(2)
}

// Rule draws a horizontal line across the text area.
func (r *Renderer) Rule() {
	pageW, _ := r.pdf.GetPageSize()
	left, _, right, _ := r.pdf.GetMargins()
	r.pdf.Ln(2)
	y := r.pdf.GetY()
	r.pdf.Line(left, y, pageW-right, y)
	r.pdf.Ln(3)
}

// PageBreak starts a new page.
func (r *Renderer) PageBreak() {
	r.pdf.AddPage()
}

// Pages returns the number of pages started so far.
func (r *Renderer) Pages() int {
	return r.pdf.PageNo()
}

// WriteFile writes the document to path and releases the renderer. It fails
// with ErrMissingGlyph if any text could not be drawn.
func (r *Renderer) WriteFile(path string) error {
	if r.missing != nil {
		return r.missing
	}
	if err := r.pdf.Error(); err != nil {
		return err
	}
	return r.pdf.OutputFileAndClose(path)
}

func (r *Renderer) writeSpans(spans []Span) {
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		family := bodyFont
		if s.Mono {
			family = monoFont
		}
		style := ""
		if s.Bold {
			style += "B"
		}
		if s.Italic {
			style += "I"
		}
		if s.Link != "" {
			style += "U"
			r.pdf.SetTextColor(0, 0, 200)
		}
		r.pdf.SetFont(family, style, bodySize)

		text := r.tr(s.Text)
		if s.Link != "" {
			r.pdf.WriteLinkString(lineHeight, text, s.Link)
			r.pdf.SetTextColor(0, 0, 0)
		} else {
			r.pdf.Write(lineHeight, text)
		}
	}
	r.pdf.SetFont(bodyFont, "", bodySize)
}

//go:build !nopdfium

package docflip

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/responses"
	"github.com/klippa-app/go-pdfium/webassembly"
)

var (
	pdfiumPool     pdfium.Pool
	pdfiumPoolOnce sync.Once
	pdfiumPoolErr  error
)

func initPdfiumPool() {
	pdfiumPool, pdfiumPoolErr = webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
}

// pdfiumDocument opens path in a pooled PDFium instance. The returned
// release func closes the document and gives the instance back.
func pdfiumDocument(path string) (pdfium.Pdfium, *responses.OpenDocument, func(), error) {
	pdfiumPoolOnce.Do(initPdfiumPool)
	if pdfiumPoolErr != nil {
		return nil, nil, nil, fmt.Errorf("%w: init pdfium: %v", ErrBackendUnavailable, pdfiumPoolErr)
	}

	instance, err := pdfiumPool.GetInstance(30 * time.Second)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get pdfium instance: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		instance.Close()
		return nil, nil, nil, fmt.Errorf("read PDF: %w", err)
	}

	doc, err := instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		instance.Close()
		return nil, nil, nil, fmt.Errorf("open PDF: %w", err)
	}

	release := func() {
		instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
			Document: doc.Document,
		})
		instance.Close()
	}
	return instance, doc, release, nil
}

// PdfiumReader reads page text through PDFium compiled to WebAssembly.
// Text rectangles are regrouped into lines so multi-column and rotated runs
// come out in reading order.
type PdfiumReader struct{}

// NewPdfiumReader creates a new PdfiumReader.
func NewPdfiumReader() *PdfiumReader {
	return &PdfiumReader{}
}

func (r *PdfiumReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	instance, doc, release, err := pdfiumDocument(path)
	if err != nil {
		return nil, err
	}
	defer release()

	pageCountResp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return nil, fmt.Errorf("get page count: %w", err)
	}

	pages := make([]string, 0, pageCountResp.PageCount)
	for i := 0; i < pageCountResp.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, r.extractStructuredPage(instance, doc, i))
	}
	return pages, nil
}

// pdfRect represents a text rectangle with font metadata from PDFium.
type pdfRect struct {
	text     string
	left     float64
	top      float64
	right    float64
	bottom   float64
	fontSize float64
}

// pdfTextLine is a run of rects sharing a baseline.
type pdfTextLine struct {
	rects    []pdfRect
	top      float64
	bottom   float64
	left     float64
	fontSize float64
}

func (l *pdfTextLine) text() string {
	var b strings.Builder
	for _, r := range l.rects {
		b.WriteString(r.text)
	}
	return b.String()
}

// extractStructuredPage returns the page text in reading order, falling back
// to PDFium's flat page text when no rects are reported.
func (r *PdfiumReader) extractStructuredPage(instance pdfium.Pdfium, doc *responses.OpenDocument, pageIdx int) string {
	structured, err := instance.GetPageTextStructured(&requests.GetPageTextStructured{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc.Document,
				Index:    pageIdx,
			},
		},
		Mode:                   requests.GetPageTextStructuredModeRects,
		CollectFontInformation: true,
	})
	if err != nil || len(structured.Rects) == 0 {
		return r.extractPlainPage(instance, doc, pageIdx)
	}

	var rects []pdfRect
	for _, sr := range structured.Rects {
		if strings.TrimSpace(sr.Text) == "" {
			continue
		}
		pr := pdfRect{
			text:   sr.Text,
			left:   sr.PointPosition.Left,
			top:    sr.PointPosition.Top,
			right:  sr.PointPosition.Right,
			bottom: sr.PointPosition.Bottom,
		}
		if sr.FontInformation != nil {
			pr.fontSize = sr.FontInformation.Size
		}
		rects = append(rects, pr)
	}
	if len(rects) == 0 {
		return ""
	}

	lines := groupRectsIntoLines(rects)
	return renderLines(lines, detectBodyFontSize(lines))
}

func (r *PdfiumReader) extractPlainPage(instance pdfium.Pdfium, doc *responses.OpenDocument, pageIdx int) string {
	textResp, err := instance.GetPageText(&requests.GetPageText{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc.Document,
				Index:    pageIdx,
			},
		},
	})
	if err != nil {
		return ""
	}
	return textResp.Text
}

// groupRectsIntoLines groups rects by their vertical position into lines,
// sorted top-to-bottom, with rects within each line sorted left-to-right.
func groupRectsIntoLines(rects []pdfRect) []pdfTextLine {
	// PDF coordinates: top of page has the highest value.
	sort.Slice(rects, func(i, j int) bool {
		if math.Abs(rects[i].top-rects[j].top) < 2 {
			return rects[i].left < rects[j].left
		}
		return rects[i].top > rects[j].top
	})

	var lines []pdfTextLine
	for _, r := range rects {
		merged := false
		for i := range lines {
			if math.Abs(lines[i].top-r.top) < 3 {
				lines[i].rects = append(lines[i].rects, r)
				if r.left < lines[i].left {
					lines[i].left = r.left
				}
				if r.bottom < lines[i].bottom {
					lines[i].bottom = r.bottom
				}
				merged = true
				break
			}
		}
		if !merged {
			lines = append(lines, pdfTextLine{
				rects:  []pdfRect{r},
				top:    r.top,
				bottom: r.bottom,
				left:   r.left,
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].top > lines[j].top
	})

	for i := range lines {
		sort.Slice(lines[i].rects, func(a, b int) bool {
			return lines[i].rects[a].left < lines[i].rects[b].left
		})
		lines[i].fontSize = dominantFontSize(lines[i].rects)
	}
	return lines
}

// dominantFontSize returns the font size that covers the most text in a line.
func dominantFontSize(rects []pdfRect) float64 {
	counts := map[float64]int{}
	for _, r := range rects {
		counts[math.Round(r.fontSize*10)/10] += len(r.text)
	}
	var best float64
	bestCount := 0
	for size, c := range counts {
		if c > bestCount || (c == bestCount && size > best) {
			bestCount = c
			best = size
		}
	}
	return best
}

// detectBodyFontSize finds the most common font size across all lines
// (weighted by character count), which represents the body text.
func detectBodyFontSize(lines []pdfTextLine) float64 {
	sizeCounts := map[float64]int{}
	for _, l := range lines {
		for _, r := range l.rects {
			sizeCounts[math.Round(r.fontSize*10)/10] += len(strings.TrimSpace(r.text))
		}
	}
	var bodySize float64
	maxCount := 0
	for size, count := range sizeCounts {
		if count > maxCount || (count == maxCount && size < bodySize) {
			maxCount = count
			bodySize = size
		}
	}
	return bodySize
}

// renderLines joins lines with newlines. A vertical gap larger than one and
// a half line heights becomes a blank line. Tiny standalone annotations such
// as footnote markers are dropped.
func renderLines(lines []pdfTextLine, bodySize float64) string {
	var b strings.Builder
	for i, line := range lines {
		text := strings.TrimSpace(line.text())
		if text == "" {
			continue
		}
		if line.fontSize > 0 && bodySize > 0 && line.fontSize < bodySize*0.6 && len([]rune(text)) <= 3 {
			continue
		}

		if i > 0 && b.Len() > 0 {
			prev := lines[i-1]
			gap := prev.bottom - line.top
			lineHeight := line.top - line.bottom
			if lineHeight <= 0 {
				lineHeight = bodySize
			}
			if lineHeight > 0 && gap > lineHeight*1.5 {
				b.WriteString("\n")
			}
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

//go:build ocr && !nopdfium

package docflip

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/klippa-app/go-pdfium/requests"
	"github.com/otiai10/gosseract/v2"
)

const ocrDPI = 300

// OCRReader rasterizes every page with PDFium and recognizes the bitmap
// with Tesseract. It is the reader of last resort for scanned documents.
type OCRReader struct {
	languages []string
}

// NewOCRReader creates a reader recognizing the given Tesseract languages,
// "eng" when none are given.
func NewOCRReader(languages ...string) *OCRReader {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &OCRReader{languages: languages}
}

func (r *OCRReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	instance, doc, release, err := pdfiumDocument(path)
	if err != nil {
		return nil, err
	}
	defer release()

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		return nil, fmt.Errorf("get page count: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(r.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(ocrDPI)); err != nil {
		return nil, fmt.Errorf("set dpi: %w", err)
	}

	pages := make([]string, 0, count.PageCount)
	for i := 0; i < count.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		render, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
			Page: requests.Page{
				ByIndex: &requests.PageByIndex{
					Document: doc.Document,
					Index:    i,
				},
			},
			DPI: ocrDPI,
		})
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		err = png.Encode(&buf, render.Result.Image)
		render.Cleanup()
		if err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}

		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			return nil, fmt.Errorf("set image: %w", err)
		}
		text, err := client.Text()
		if err != nil {
			return nil, fmt.Errorf("recognize page %d: %w", i+1, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

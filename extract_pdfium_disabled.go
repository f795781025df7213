//go:build nopdfium

package docflip

import (
	"context"
	"fmt"
)

// PdfiumReader is compiled out in nopdfium builds and always fails.
type PdfiumReader struct{}

// NewPdfiumReader creates a new PdfiumReader.
func NewPdfiumReader() *PdfiumReader {
	return &PdfiumReader{}
}

func (r *PdfiumReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	return nil, fmt.Errorf("%w: built with nopdfium", ErrBackendUnavailable)
}

//go:build !ocr || nopdfium

package docflip

import (
	"context"
	"fmt"
)

// OCRReader is compiled out unless built with the ocr tag.
type OCRReader struct{}

// NewOCRReader creates a new OCRReader.
func NewOCRReader(languages ...string) *OCRReader {
	return &OCRReader{}
}

func (r *OCRReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	return nil, fmt.Errorf("%w: built without ocr support", ErrBackendUnavailable)
}

// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package docflip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicholasgasior/docflip-go/internal/ooxml"
)

// PageReader extracts the text of a PDF, one entry per page in page order.
// An entry may be empty when the page has no text layer.
type PageReader interface {
	ReadPages(ctx context.Context, path string) ([]string, error)
}

// PageReaderFunc adapts a plain function to the PageReader interface.
type PageReaderFunc func(ctx context.Context, path string) ([]string, error)

func (f PageReaderFunc) ReadPages(ctx context.Context, path string) ([]string, error) {
	return f(ctx, path)
}

// ExtractionOption configures a backend built by NewExtractionBackend.
type ExtractionOption func(*extractionBackend)

// WithPagePlaceholder sets the text written for pages without legible text.
func WithPagePlaceholder(s string) ExtractionOption {
	return func(b *extractionBackend) {
		if s != "" {
			b.placeholder = s
		}
	}
}

type extractionBackend struct {
	reader      PageReader
	placeholder string
}

// NewExtractionBackend turns a PageReader into an extraction Backend. The
// DOCX it writes holds exactly one paragraph per source page, each after the
// first starting on a new page.
func NewExtractionBackend(reader PageReader, opts ...ExtractionOption) Backend {
	b := &extractionBackend{reader: reader, placeholder: DefaultPlaceholder}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *extractionBackend) Convert(ctx context.Context, src, dst string) error {
	pages, err := b.reader.ReadPages(ctx, src)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return ErrNoPages
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := ooxml.Document{
		Title:   strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		Creator: "docflip",
	}
	for i, unit := range pageUnits(pages, b.placeholder) {
		doc.Paragraphs = append(doc.Paragraphs, ooxml.Paragraph{
			Text:            unit,
			PageBreakBefore: i > 0,
		})
	}

	return stageOutput(ctx, dst, mimeDOCX, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return fmt.Errorf("create DOCX: %w", err)
		}
		if err := ooxml.WriteDocument(f, doc); err != nil {
			f.Close()
			return fmt.Errorf("write DOCX: %w", err)
		}
		return f.Close()
	})
}

package docflip

import (
	"context"
	"strings"

	"github.com/nicholasgasior/docflip-go/internal/ooxml"
	"github.com/nicholasgasior/docflip-go/internal/pdfrender"
)

// PlainTextBackend renders every DOCX paragraph as plain text, keeping
// heading styles and page breaks. It reads the package leniently and so
// copes with documents the layout backend rejects.
type PlainTextBackend struct{}

// NewPlainTextBackend creates a new PlainTextBackend.
func NewPlainTextBackend() *PlainTextBackend {
	return &PlainTextBackend{}
}

func (b *PlainTextBackend) Convert(ctx context.Context, src, dst string) error {
	doc, err := ooxml.ReadDocument(src)
	if err != nil {
		return err
	}

	r := pdfrender.New(pdfrender.Options{Title: doc.Title, Author: doc.Creator})
	for i, p := range doc.Paragraphs {
		if p.PageBreakBefore && i > 0 {
			r.PageBreak()
		}
		text := strings.TrimRight(p.Text, " \t\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		level := headingLevelFor(p.Style)
		if level == 0 && p.Style == "Title" {
			level = 1
		}
		if level > 0 {
			r.Heading(level, text)
			continue
		}
		r.Text(text)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return stageOutput(ctx, dst, mimePDF, r.WriteFile)
}

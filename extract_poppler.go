package docflip

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// PdftotextReader shells out to poppler's pdftotext in layout mode. Pages
// are separated by form feeds in its output.
type PdftotextReader struct {
	binary string
}

// NewPdftotextReader creates a reader that runs binary, or "pdftotext" from
// PATH when binary is empty.
func NewPdftotextReader(binary string) *PdftotextReader {
	if binary == "" {
		binary = "pdftotext"
	}
	return &PdftotextReader{binary: binary}
}

func (r *PdftotextReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	bin, err := resolveBinary(r.binary)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-layout",
		"-enc", "UTF-8",
		"-q",
		path,
		"-",
	}
	cmd := commandContext(ctx, bin, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return splitFormFeeds(decodeText(stdout.Bytes())), nil
}

// splitFormFeeds splits pdftotext output into pages. Every page, including
// the last, is terminated by a form feed.
func splitFormFeeds(out string) []string {
	if out == "" {
		return nil
	}
	pages := strings.Split(out, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

package docflip

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// SofficeBackend converts with a headless LibreOffice. It has the only full
// layout engine among the synthesis backends and is tried first.
type SofficeBackend struct {
	binary string
}

// NewSofficeBackend creates a backend that runs binary, or "soffice" from
// PATH when binary is empty.
func NewSofficeBackend(binary string) *SofficeBackend {
	if binary == "" {
		binary = "soffice"
	}
	return &SofficeBackend{binary: binary}
}

func (b *SofficeBackend) Convert(ctx context.Context, src, dst string) error {
	bin, err := resolveBinary(b.binary)
	if err != nil {
		return err
	}
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}

	outDir, err := os.MkdirTemp("", "docflip-soffice-")
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	// A private profile lets conversions run side by side; soffice refuses
	// to start a second instance on a shared one.
	profile := (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(outDir, "profile"))}).String()
	args := []string{
		"--headless",
		"--norestore",
		"--nolockcheck",
		"-env:UserInstallation=" + profile,
		"--convert-to", "pdf",
		"--outdir", outDir,
		absSrc,
	}
	cmd := commandContext(ctx, bin, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("soffice convert: %w: %s", err, strings.TrimSpace(string(output)))
	}

	// soffice exits zero when it cannot load the document; the missing
	// output file is the only signal.
	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(absSrc), filepath.Ext(absSrc))+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return fmt.Errorf("soffice produced no PDF: %w", err)
	}

	return stageOutput(ctx, dst, mimePDF, func(tmp string) error {
		return copyFile(produced, tmp)
	})
}

package docflip

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZIP  = "application/zip"
)

// stageOutput lets write fill a temp file next to dst, validates it as an
// artifact of the given MIME type and renames it over dst. Readers of dst
// never observe a partially written file.
func stageOutput(ctx context.Context, dst, mime string, write func(tmp string) error) error {
	tmp := stagingPath(dst)
	defer os.Remove(tmp)

	if err := write(tmp); err != nil {
		return err
	}
	if err := validateArtifact(tmp, mime); err != nil {
		return err
	}
	return commitStaged(ctx, tmp, dst)
}

// stagingPath returns a unique hidden sibling of dst.
func stagingPath(dst string) string {
	dir, base := filepath.Split(dst)
	return filepath.Join(dir, "."+base+"."+uuid.NewString()+".part")
}

// commitStaged renames tmp over dst while holding the destination lock. The
// context is checked under the lock so an attempt abandoned by the chain
// cannot overwrite a later result.
func commitStaged(ctx context.Context, tmp, dst string) error {
	fl, err := destinationLock(dst)
	if err != nil {
		return err
	}
	locked, err := fl.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", dst, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", dst)
	}
	defer fl.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("discard staged output: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("commit output: %w", err)
	}
	return nil
}

// discardDestination removes whatever a previous attempt left at path.
func discardDestination(path string) error {
	fl, err := destinationLock(path)
	if err != nil {
		return err
	}
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer fl.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// lockStripes bounds how many lock files docflip ever creates.
const lockStripes = 32

// destinationLock returns the advisory lock guarding dst. Destinations hash
// onto a fixed set of lock files in the temp dir, so the output directory
// only ever holds artifacts and the temp dir does not grow with every
// conversion. Two destinations on one stripe merely serialize their commits.
func destinationLock(dst string) (*flock.Flock, error) {
	abs, err := filepath.Abs(dst)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dst, err)
	}
	sum := sha256.Sum256([]byte(abs))
	stripe := binary.BigEndian.Uint32(sum[:4]) % lockStripes
	return flock.New(filepath.Join(os.TempDir(), fmt.Sprintf("docflip-%02d.lock", stripe))), nil
}

// validateArtifact checks that path is a non-empty file of the wanted type.
func validateArtifact(path, mime string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect artifact type: %w", err)
	}
	if mtype.Is(mime) {
		return nil
	}
	// Sniffing only looks at the first entries of an archive; fall back to
	// checking for the main document part.
	if mime == mimeDOCX && mtype.Is(mimeZIP) && zipHasEntry(path, "word/document.xml") {
		return nil
	}
	return fmt.Errorf("%w: detected %s, want %s", ErrInvalidOutput, mtype.String(), mime)
}

func zipHasEntry(path, name string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

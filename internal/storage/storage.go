// Package storage keeps uploaded sources and converted artifacts on disk.
// Each conversion gets its own job directory under the root, so uploads that
// share a file name never share a path.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/nicholasgasior/docflip-go"
)

var (
	// ErrInvalidName is returned for names that cannot be stored safely.
	ErrInvalidName = errors.New("invalid file name")
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("file exceeds the upload size limit")
	// ErrWrongExtension is returned when a file does not match the direction.
	ErrWrongExtension = errors.New("file extension does not match the conversion type")
)

// Store is a flat directory of uploads and artifacts.
type Store struct {
	Root string
}

// Open creates root if needed and returns a Store over its absolute path.
func Open(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{Root: abs}, nil
}

// SanitizeFilename reduces name to a safe base name: directories are
// dropped and anything outside letters, digits, dot, dash and underscore
// becomes an underscore. It returns "" when nothing usable remains.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" || strings.Trim(out, "_-") == "" {
		return ""
	}
	return out
}

// Job returns the store for one conversion, the subdirectory named id. id
// must be a UUID in canonical form. The directory is created by the first
// Save.
func (s *Store) Job(id string) (*Store, error) {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return nil, fmt.Errorf("%w: job %q", ErrInvalidName, id)
	}
	return &Store{Root: filepath.Join(s.Root, id)}, nil
}

// Path resolves name inside the store. Names that would escape the root and
// hidden names, which include in-flight uploads, are rejected.
func (s *Store) Path(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.Root, name), nil
}

// Save writes r to name, replacing any existing file. At most limit bytes
// are accepted; a larger upload leaves nothing behind.
func (s *Store) Save(name string, r io.Reader, limit int64) (string, error) {
	dst, err := s.Path(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	tmp := filepath.Join(s.Root, "."+name+"."+uuid.NewString()+".upload")
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer os.Remove(tmp)

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n > limit {
		return "", ErrTooLarge
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return dst, nil
}

// Exists reports whether name is a regular file in the store.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// OutputName returns the artifact name for an input converted in direction
// d: "report.pdf" becomes "converted_report.docx".
func OutputName(input string, d docflip.Direction) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return "converted_" + base + d.TargetExt()
}

// CheckExtension verifies name carries the source extension of d.
func CheckExtension(name string, d docflip.Direction) error {
	if strings.ToLower(filepath.Ext(name)) != d.SourceExt() {
		return fmt.Errorf("%w: %s expects a %s file", ErrWrongExtension, d, d.SourceExt())
	}
	return nil
}

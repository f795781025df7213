package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nicholasgasior/docflip-go"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ana\Relatório final.docx`, "Relat_rio_final.docx"},
		{"my file (1).pdf", "my_file__1_.pdf"},
		{".hidden.pdf", "hidden.pdf"},
		{"..", ""},
		{"___", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "uploads")
	s, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if info, err := os.Stat(s.Root); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
	if !filepath.IsAbs(s.Root) {
		t.Errorf("root %q is not absolute", s.Root)
	}
}

func TestPath(t *testing.T) {
	s := &Store{Root: "/srv/uploads"}
	if got, err := s.Path("converted_a.pdf"); err != nil || got != filepath.Join("/srv/uploads", "converted_a.pdf") {
		t.Errorf("Path = %q, %v", got, err)
	}
	for _, bad := range []string{"", "..", "../x.pdf", "a/b.pdf", `a\b.pdf`, ".a.pdf.part"} {
		if _, err := s.Path(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Path(%q) err = %v, want ErrInvalidName", bad, err)
		}
	}
}

func TestSave(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.Save("in.pdf", strings.NewReader("%PDF-1.4"), 64)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "%PDF-1.4" {
		t.Errorf("saved %q", data)
	}
	if !s.Exists("in.pdf") {
		t.Error("Exists = false after Save")
	}

	if _, err := s.Save("big.pdf", strings.NewReader(strings.Repeat("x", 65)), 64); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized Save err = %v, want ErrTooLarge", err)
	}
	entries, _ := os.ReadDir(s.Root)
	if len(entries) != 1 {
		t.Errorf("store holds %d entries after a rejected upload, want 1", len(entries))
	}
}

func TestJob(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"", "..", "job", "../" + uuid.NewString(), strings.ToUpper(uuid.NewString()), "urn:uuid:" + uuid.NewString()} {
		if _, err := s.Job(id); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Job(%q) err = %v, want ErrInvalidName", id, err)
		}
	}

	a, err := s.Job(uuid.NewString())
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	b, err := s.Job(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(a.Root); !os.IsNotExist(err) {
		t.Errorf("Job created its directory before any Save: %v", err)
	}

	pa, err := a.Save("letter.docx", strings.NewReader("first"), 64)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	pb, err := b.Save("letter.docx", strings.NewReader("second"), 64)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if pa == pb {
		t.Fatalf("two jobs saved to the same path %s", pa)
	}
	if filepath.Dir(filepath.Dir(pa)) != s.Root {
		t.Errorf("job file %s is not one level below the root", pa)
	}
	if data, _ := os.ReadFile(pa); string(data) != "first" {
		t.Errorf("first job holds %q", data)
	}
	if s.Exists("letter.docx") {
		t.Error("job upload visible at the root")
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in   string
		d    docflip.Direction
		want string
	}{
		{"report.pdf", docflip.Extraction, "converted_report.docx"},
		{"letter.docx", docflip.Synthesis, "converted_letter.pdf"},
		{"archive.v2.pdf", docflip.Extraction, "converted_archive.v2.docx"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.in, tt.d); got != tt.want {
			t.Errorf("OutputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckExtension(t *testing.T) {
	if err := CheckExtension("Scan.PDF", docflip.Extraction); err != nil {
		t.Errorf("upper-case extension rejected: %v", err)
	}
	if err := CheckExtension("scan.pdf", docflip.Synthesis); !errors.Is(err, ErrWrongExtension) {
		t.Errorf("err = %v, want ErrWrongExtension", err)
	}
}

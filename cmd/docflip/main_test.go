package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nicholasgasior/docflip-go"
	"github.com/nicholasgasior/docflip-go/internal/ooxml"
)

// runCommand executes the CLI with args in a clean configuration: no
// config file, no .env in the working directory and pure-Go backends only.
func runCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("DOCFLIP_SYNTHESIS_BACKENDS", docflip.BackendPlainText)
	t.Setenv("DOCFLIP_EXTRACTION_BACKENDS", docflip.BackendPdftext)
	t.Setenv("DOCFLIP_SOFFICE", "docflip-test-no-such-soffice")
	t.Setenv("DOCFLIP_PDFTOTEXT", "docflip-test-no-such-pdftotext")

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-format", "json", "--log-level", "error"}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeDOCX(t *testing.T, path string, text string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	doc := ooxml.Document{Title: "CLI", Paragraphs: []ooxml.Paragraph{{Text: text}}}
	if err := ooxml.WriteDocument(f, doc); err != nil {
		t.Fatal(err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&docflip.InvalidRequestError{Reason: "bad"}, 2},
		{&docflip.AllBackendsFailedError{Direction: docflip.Synthesis}, 1},
		{errors.New("disk full"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "memo.docx")
	writeDOCX(t, src, "Meeting moved to Friday")

	stdout, _, err := runCommand(t, "convert", src)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := filepath.Join(dir, "converted_memo.pdf")
	if !strings.Contains(stdout, want) || !strings.Contains(stdout, docflip.BackendPlainText) {
		t.Errorf("stdout = %q", stdout)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("artifact is not a PDF")
	}
}

func TestConvertCommandOutputFlag(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "memo.docx")
	writeDOCX(t, src, "Agenda")
	dst := filepath.Join(dir, "out.pdf")

	if _, _, err := runCommand(t, "convert", src, "-o", dst); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("output flag ignored: %v", err)
	}
}

func TestConvertCommandFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.docx")
	if err := os.WriteFile(src, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := runCommand(t, "convert", src)
	if err == nil {
		t.Fatal("expected an error")
	}
	if exitCode(err) != 1 {
		t.Errorf("exit code = %d, want 1", exitCode(err))
	}
	if !strings.Contains(stderr, docflip.BackendPlainText) {
		t.Errorf("attempt table missing from stderr: %q", stderr)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "converted_broken.pdf")); !os.IsNotExist(statErr) {
		t.Errorf("failed conversion left an artifact: %v", statErr)
	}
}

func TestConvertCommandInvalidRequest(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, args := range [][]string{
		{"convert", txt},
		{"convert", filepath.Join(dir, "missing.pdf")},
		{"convert", txt + ".docx", "-o", filepath.Join(dir, "x.docx")},
	} {
		_, _, err := runCommand(t, args...)
		if exitCode(err) != 2 {
			t.Errorf("%v: err = %v, want an invalid request", args, err)
		}
	}
}

func TestBackendsCommand(t *testing.T) {
	stdout, _, err := runCommand(t, "backends")
	if err != nil {
		t.Fatalf("backends: %v", err)
	}
	for _, want := range []string{"pdf-to-docx", "docx-to-pdf", docflip.BackendPdftext, docflip.BackendPlainText, "libreoffice", "missing"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output is missing %q:\n%s", want, stdout)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runCommand(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "docflip dev\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("DOCFLIP_LOG_FORMAT", "xml")
	_, _, err := runCommand(t, "backends")
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "format") {
		t.Errorf("err = %v", err)
	}
}

package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Command != present {
		t.Fatalf("resolved command = %q, want %q", results[0].Command, present)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("blank command = %#v", results[2])
	}
}

func TestToolsDefaults(t *testing.T) {
	reqs := Tools("", "/opt/poppler/bin/pdftotext")
	if len(reqs) != 2 {
		t.Fatalf("got %d requirements", len(reqs))
	}
	if reqs[0].Command != "soffice" {
		t.Errorf("soffice default = %q", reqs[0].Command)
	}
	if reqs[1].Command != "/opt/poppler/bin/pdftotext" {
		t.Errorf("pdftotext override = %q", reqs[1].Command)
	}
}

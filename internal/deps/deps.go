// Package deps reports which external conversion tools are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external tool a backend relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Tools returns the requirements of the built-in backends that shell out.
// Empty commands fall back to the names looked up on PATH.
func Tools(soffice, pdftotext string) []Requirement {
	if strings.TrimSpace(soffice) == "" {
		soffice = "soffice"
	}
	if strings.TrimSpace(pdftotext) == "" {
		pdftotext = "pdftotext"
	}
	return []Requirement{
		{Name: "libreoffice", Command: soffice, Description: "DOCX to PDF with full layout", Optional: true},
		{Name: "pdftotext", Command: pdftotext, Description: "poppler text extraction", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Command = path
		results = append(results, status)
	}
	return results
}

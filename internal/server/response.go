package server

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// page is the data rendered into the upload form.
type page struct {
	DownloadLink string   `json:"downloadUrl,omitempty"`
	Filename     string   `json:"filename,omitempty"`
	ProducedBy   string   `json:"producedBy,omitempty"`
	Error        string   `json:"error,omitempty"`
	Attempts     []string `json:"attempts,omitempty"`
}

// problemDetail is an RFC 7807 error body for JSON clients.
type problemDetail struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Attempts []string `json:"attempts,omitempty"`
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// respondJSON marshals before writing headers so an encoding failure still
// yields a clean 500.
func respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

func respondPage(w http.ResponseWriter, r *http.Request, status int, p page) {
	if wantsJSON(r) {
		respondJSON(w, status, p)
		return
	}
	var b strings.Builder
	if err := indexTemplate.Execute(&b, p); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(b.String()))
}

// respondError reports a failed request as a problem document or as the
// form page with the message, depending on what the client accepts.
func respondError(w http.ResponseWriter, r *http.Request, status int, detail string, attempts []string) {
	if wantsJSON(r) {
		payload, err := json.Marshal(problemDetail{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Attempts: attempts,
		})
		if err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(status)
		w.Write(payload)
		return
	}
	respondPage(w, r, status, page{Error: detail, Attempts: attempts})
}

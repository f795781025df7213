// Package server exposes the conversion engine over HTTP: an upload form,
// a conversion endpoint and downloads of converted artifacts.
package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/nicholasgasior/docflip-go"
	"github.com/nicholasgasior/docflip-go/internal/config"
	"github.com/nicholasgasior/docflip-go/internal/deps"
	"github.com/nicholasgasior/docflip-go/internal/storage"
)

// Conversion types accepted by POST /convert.
const (
	PDFToWord = "pdf-to-word"
	WordToPDF = "word-to-pdf"
)

// multipartOverhead is the slack allowed on top of the upload limit for
// multipart framing and the other form fields.
const multipartOverhead = 1 << 20

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ConvertRequest is the decoded form of POST /convert.
type ConvertRequest struct {
	ConversionType string
	Filename       string
}

// Validate checks the form fields.
func (r ConvertRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ConversionType,
			validation.Required.Error("no conversion type selected"),
			validation.In(PDFToWord, WordToPDF).Error("invalid conversion type")),
		validation.Field(&r.Filename,
			validation.Required.Error("no file selected")),
	)
}

// Direction maps the conversion type to an engine direction.
func (r ConvertRequest) Direction() docflip.Direction {
	if r.ConversionType == WordToPDF {
		return docflip.Synthesis
	}
	return docflip.Extraction
}

type handler struct {
	engine    *docflip.Engine
	store     *storage.Store
	maxUpload int64
	tools     []deps.Requirement
}

// New wires the routes and middleware into a single handler.
func New(cfg *config.Config, engine *docflip.Engine, store *storage.Store, logger zerolog.Logger) http.Handler {
	h := &handler{
		engine:    engine,
		store:     store,
		maxUpload: cfg.Server.MaxUploadBytes,
		tools:     deps.Tools(cfg.Tools.Soffice, cfg.Tools.Pdftotext),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /convert", h.convert)
	mux.HandleFunc("GET /download/{id}/{name}", h.download)
	mux.HandleFunc("GET /healthz", h.health)

	// Order: CORS -> request log -> recovery -> routes
	var root http.Handler = mux
	root = recovery(root)
	root = requestLogger(logger)(root)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
	})
	return corsHandler.Handler(root)
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	respondPage(w, r, http.StatusOK, page{})
}

func (h *handler) convert(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error(), nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, "malformed upload: "+err.Error(), nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := ConvertRequest{ConversionType: r.FormValue("conversionType")}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		req.Filename = storage.SanitizeFilename(header.Filename)
	case !errors.Is(err, http.ErrMissingFile):
		respondError(w, r, http.StatusBadRequest, "malformed upload: "+err.Error(), nil)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	direction := req.Direction()
	if err := storage.CheckExtension(req.Filename, direction); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	id := uuid.NewString()
	job, err := h.store.Job(id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	src, err := job.Save(req.Filename, file, h.maxUpload)
	if err != nil {
		os.Remove(job.Root)
		if errors.Is(err, storage.ErrTooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, err.Error(), nil)
			return
		}
		log.Error().Err(err).Str("file", req.Filename).Msg("save upload")
		respondError(w, r, http.StatusInternalServerError, "could not store the upload", nil)
		return
	}

	outName := storage.OutputName(req.Filename, direction)
	dst, err := job.Path(outName)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	outcome, err := h.engine.Convert(r.Context(), docflip.Request{
		Source:      src,
		Destination: dst,
		Direction:   direction,
	})
	if err != nil {
		var failed *docflip.AllBackendsFailedError
		switch {
		case docflip.IsInvalidRequest(err):
			respondError(w, r, http.StatusBadRequest, err.Error(), nil)
		case errors.As(err, &failed):
			log.Warn().Err(err).Str("file", req.Filename).Str("job", id).Stringer("direction", direction).Msg("conversion failed")
			respondError(w, r, http.StatusInternalServerError,
				fmt.Sprintf("%s conversion failed", direction), attemptReasons(failed.Attempts))
		default:
			log.Error().Err(err).Str("file", req.Filename).Msg("conversion error")
			respondError(w, r, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}

	log.Info().
		Str("file", req.Filename).
		Str("job", id).
		Str("output", outName).
		Str("backend", outcome.ProducedBy).
		Int("attempts", len(outcome.Attempts)).
		Msg("converted")
	respondPage(w, r, http.StatusOK, page{
		DownloadLink: "/download/" + id + "/" + url.PathEscape(outName),
		Filename:     outName,
		ProducedBy:   outcome.ProducedBy,
	})
}

func attemptReasons(attempts []docflip.Attempt) []string {
	out := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if !a.Succeeded() {
			out = append(out, a.Backend+": "+a.Cause())
		}
	}
	return out
}

func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	job, err := h.store.Job(r.PathValue("id"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, "file not found", nil)
		return
	}
	path, err := job.Path(name)
	if err != nil || !job.Exists(name) {
		respondError(w, r, http.StatusNotFound, "file not found", nil)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "file not found", nil)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "could not read file", nil)
		return
	}

	if ct, ok := contentTypes[filepath.Ext(name)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

type healthResponse struct {
	Status   string              `json:"status"`
	Backends map[string][]string `json:"backends"`
	Tools    []toolStatus        `json:"tools"`
}

type toolStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Backends: map[string][]string{
			docflip.Extraction.String(): h.engine.Backends(docflip.Extraction),
			docflip.Synthesis.String():  h.engine.Backends(docflip.Synthesis),
		},
	}
	for _, s := range deps.CheckBinaries(h.tools) {
		resp.Tools = append(resp.Tools, toolStatus{
			Name:      s.Name,
			Command:   s.Command,
			Available: s.Available,
			Detail:    s.Detail,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

package docflip

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its chains.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithAttemptTimeout bounds every backend attempt (default: no limit).
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.attemptTimeout = d
	}
}

// WithPlaceholder sets the text written for extracted pages without legible
// text (default: DefaultPlaceholder).
func WithPlaceholder(s string) Option {
	return func(e *Engine) {
		if s != "" {
			e.placeholder = s
		}
	}
}

// WithBackendOrder restricts a direction to the named backends, tried in the
// given order. Names must be registered by the time a conversion runs.
func WithBackendOrder(d Direction, names ...string) Option {
	return func(e *Engine) {
		if len(names) == 0 {
			delete(e.order, d)
			return
		}
		e.order[d] = append([]string(nil), names...)
	}
}

// WithSofficePath sets the LibreOffice binary (default: soffice from PATH).
func WithSofficePath(p string) Option {
	return func(e *Engine) {
		e.sofficePath = p
	}
}

// WithPdftotextPath sets the poppler pdftotext binary (default: pdftotext
// from PATH).
func WithPdftotextPath(p string) Option {
	return func(e *Engine) {
		e.pdftotextPath = p
	}
}

// WithOCRLanguages sets the Tesseract languages used by the ocr backend.
func WithOCRLanguages(langs ...string) Option {
	return func(e *Engine) {
		e.ocrLanguages = append([]string(nil), langs...)
	}
}

// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package docflip converts documents between PDF and DOCX by trying an
// ordered chain of conversion backends until one succeeds.
package docflip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// PriorityPrimary is for the most faithful backends, tried first.
	PriorityPrimary = 0.0
	// PriorityFallback is for backends that trade fidelity for robustness.
	PriorityFallback = 10.0
	// PriorityLastResort is for backends that only salvage text.
	PriorityLastResort = 20.0
)

// Built-in backend names.
const (
	BackendPdfium      = "pdfium"
	BackendPdftext     = "pdftext"
	BackendPdftotext   = "pdftotext"
	BackendRawStream   = "rawstream"
	BackendOCR         = "ocr"
	BackendLibreOffice = "libreoffice"
	BackendLayout      = "layout"
	BackendPlainText   = "plaintext"
)

// BuiltinBackends returns the names of the built-in backends for d in their
// default order.
func BuiltinBackends(d Direction) []string {
	switch d {
	case Extraction:
		return []string{BackendPdfium, BackendPdftext, BackendPdftotext, BackendRawStream, BackendOCR}
	case Synthesis:
		return []string{BackendLibreOffice, BackendLayout, BackendPlainText}
	}
	return nil
}

type registeredBackend struct {
	backend  Backend
	priority float64
	name     string
}

// Engine holds the backend registry for both directions and runs
// conversions through it. It is safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	backends map[Direction][]registeredBackend

	logger         zerolog.Logger
	attemptTimeout time.Duration
	placeholder    string
	order          map[Direction][]string
	sofficePath    string
	pdftotextPath  string
	ocrLanguages   []string
}

// New creates an Engine with the built-in backends registered.
func New(opts ...Option) *Engine {
	e := &Engine{
		backends:    make(map[Direction][]registeredBackend),
		logger:      zerolog.Nop(),
		placeholder: DefaultPlaceholder,
		order:       make(map[Direction][]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.enableBuiltins()
	return e
}

// RegisterBackend adds a backend for direction with the given priority.
// Lower priority values are tried first; equal priorities keep registration
// order. Registering an existing name replaces that backend.
func (e *Engine) RegisterBackend(d Direction, name string, b Backend, priority float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.backends[d]
	for i, rb := range list {
		if rb.name == name {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	list = append(list, registeredBackend{backend: b, priority: priority, name: name})
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority < list[j].priority
	})
	e.backends[d] = list
}

// Backends returns the backend names tried for d, in order.
func (e *Engine) Backends(d Direction) []string {
	chain, err := e.Chain(d)
	if err != nil {
		return nil
	}
	return chain.Names()
}

// Chain builds the fallback chain for d from the current registry.
func (e *Engine) Chain(d Direction) (*Chain, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	registered := e.backends[d]
	var selected []NamedBackend
	if names, ok := e.order[d]; ok {
		byName := make(map[string]Backend, len(registered))
		for _, rb := range registered {
			byName[rb.name] = rb.backend
		}
		for _, name := range names {
			b, ok := byName[name]
			if !ok {
				return nil, &InvalidRequestError{Reason: fmt.Sprintf("unknown %s backend %q", d, name)}
			}
			selected = append(selected, NamedBackend{Name: name, Backend: b})
		}
	} else {
		for _, rb := range registered {
			selected = append(selected, NamedBackend{Name: rb.name, Backend: rb.backend})
		}
	}

	return NewChain(d, selected,
		WithChainTimeout(e.attemptTimeout),
		WithChainLogger(e.logger),
	)
}

// Convert runs req through the chain for its direction. The source must
// exist, be readable and carry the direction's source extension.
func (e *Engine) Convert(ctx context.Context, req Request) (*Outcome, error) {
	if !req.Direction.Valid() {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("unknown direction %s", req.Direction)}
	}
	if err := checkSource(req); err != nil {
		return nil, err
	}
	chain, err := e.Chain(req.Direction)
	if err != nil {
		return nil, err
	}
	return chain.Run(ctx, req)
}

// ConvertFile converts src to dst, choosing the direction from the source
// extension. dst must carry the matching target extension.
func (e *Engine) ConvertFile(ctx context.Context, src, dst string) (*Outcome, error) {
	d, ok := DirectionForExtension(filepath.Ext(src))
	if !ok {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("unsupported source extension %q", filepath.Ext(src))}
	}
	if ext := strings.ToLower(filepath.Ext(dst)); ext != d.TargetExt() {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("destination must end in %s for %s, got %q", d.TargetExt(), d, ext)}
	}
	return e.Convert(ctx, Request{Source: src, Destination: dst, Direction: d})
}

// checkSource enforces the caller's preconditions: the source is an
// existing, readable regular file with the right extension, and the
// destination directory exists.
func checkSource(req Request) error {
	if req.Source == "" {
		return &InvalidRequestError{Reason: "source path is empty"}
	}
	if ext := strings.ToLower(filepath.Ext(req.Source)); ext != req.Direction.SourceExt() {
		return &InvalidRequestError{Reason: fmt.Sprintf("%s expects a %s source, got %q", req.Direction, req.Direction.SourceExt(), ext)}
	}

	f, err := os.Open(req.Source)
	if err != nil {
		return &InvalidRequestError{Reason: "source is not readable", Err: err}
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return &InvalidRequestError{Reason: "source is not readable", Err: err}
	}
	if !info.Mode().IsRegular() {
		return &InvalidRequestError{Reason: fmt.Sprintf("source %s is not a regular file", req.Source)}
	}

	if req.Destination != "" {
		dir := filepath.Dir(req.Destination)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return &InvalidRequestError{Reason: fmt.Sprintf("destination directory %s does not exist", dir), Err: err}
		}
	}
	return nil
}

// enableBuiltins registers all built-in backends.
func (e *Engine) enableBuiltins() {
	withPlaceholder := WithPagePlaceholder(e.placeholder)

	e.RegisterBackend(Extraction, BackendPdfium, NewExtractionBackend(NewPdfiumReader(), withPlaceholder), PriorityPrimary)
	e.RegisterBackend(Extraction, BackendPdftext, NewExtractionBackend(NewTextLayerReader(), withPlaceholder), PriorityFallback)
	e.RegisterBackend(Extraction, BackendPdftotext, NewExtractionBackend(NewPdftotextReader(e.pdftotextPath), withPlaceholder), PriorityFallback+1)
	e.RegisterBackend(Extraction, BackendRawStream, NewExtractionBackend(NewRawStreamReader(), withPlaceholder), PriorityLastResort)
	e.RegisterBackend(Extraction, BackendOCR, NewExtractionBackend(NewOCRReader(e.ocrLanguages...), withPlaceholder), PriorityLastResort+1)

	e.RegisterBackend(Synthesis, BackendLibreOffice, NewSofficeBackend(e.sofficePath), PriorityPrimary)
	e.RegisterBackend(Synthesis, BackendLayout, NewLayoutBackend(), PriorityFallback)
	e.RegisterBackend(Synthesis, BackendPlainText, NewPlainTextBackend(), PriorityLastResort)
}

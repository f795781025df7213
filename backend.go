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

package docflip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction selects which pipeline a request runs through.
type Direction int

const (
	// Extraction converts a fixed-layout PDF into an editable DOCX.
	Extraction Direction = iota + 1
	// Synthesis renders an editable DOCX into a fixed-layout PDF.
	Synthesis
)

func (d Direction) String() string {
	switch d {
	case Extraction:
		return "pdf-to-docx"
	case Synthesis:
		return "docx-to-pdf"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// SourceExt returns the file extension accepted as input for the direction.
func (d Direction) SourceExt() string {
	switch d {
	case Extraction:
		return ".pdf"
	case Synthesis:
		return ".docx"
	}
	return ""
}

// TargetExt returns the file extension of the artifact the direction produces.
func (d Direction) TargetExt() string {
	switch d {
	case Extraction:
		return ".docx"
	case Synthesis:
		return ".pdf"
	}
	return ""
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == Extraction || d == Synthesis
}

// DirectionForExtension maps a source extension to the direction that consumes it.
func DirectionForExtension(ext string) (Direction, bool) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return Extraction, true
	case ".docx":
		return Synthesis, true
	}
	return 0, false
}

// Request describes a single conversion. Source must already exist.
type Request struct {
	Source      string
	Destination string
	Direction   Direction
}

// Backend is one conversion strategy. Implementations must be safe for
// concurrent use and must either leave a complete artifact at dst or return
// an error.
type Backend interface {
	Convert(ctx context.Context, src, dst string) error
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, src, dst string) error

func (f BackendFunc) Convert(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// NamedBackend pairs a backend with the name used in attempt logs.
type NamedBackend struct {
	Name    string
	Backend Backend
}

// Attempt records one backend invocation during a chain run.
type Attempt struct {
	Backend  string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the backend produced the artifact.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Reason renders the failure for display. Empty for a successful attempt.
func (a Attempt) Reason() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}

// Cause is Reason without the backend name a BackendError prefixes, for
// displays that already show Backend next to it.
func (a Attempt) Cause() string {
	var be *BackendError
	if errors.As(a.Err, &be) {
		return be.Err.Error()
	}
	return a.Reason()
}

// Outcome is the result of running a chain. When Succeeded is true the last
// attempt is the only successful one and ProducedBy names its backend.
type Outcome struct {
	Direction  Direction
	Succeeded  bool
	ProducedBy string
	Attempts   []Attempt
}

// Failures returns the failed attempts in the order they were tried.
func (o *Outcome) Failures() []Attempt {
	var out []Attempt
	for _, a := range o.Attempts {
		if !a.Succeeded() {
			out = append(out, a)
		}
	}
	return out
}

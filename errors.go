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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBackendUnavailable is returned by a backend whose engine is not
	// installed or not compiled in.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEmptyOutput is returned when a backend wrote a zero-byte artifact.
	ErrEmptyOutput = errors.New("backend produced an empty artifact")
	// ErrInvalidOutput is returned when the artifact is not of the expected format.
	ErrInvalidOutput = errors.New("backend produced an invalid artifact")
	// ErrNoPages is returned when a source document has no pages to extract.
	ErrNoPages = errors.New("document has no pages")
)

// BackendError is a single backend's failure, as recorded in an Attempt.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// AllBackendsFailedError is returned when every configured backend for a
// direction failed. Attempts holds the full ordered log.
type AllBackendsFailedError struct {
	Direction Direction
	Attempts  []Attempt
}

func (e *AllBackendsFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s conversion failed", e.Direction)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s conversion failed after %d attempt(s):", e.Direction, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s", a.Reason())
	}
	return b.String()
}

// Unwrap exposes every attempt's failure so errors.Is matches any of them.
func (e *AllBackendsFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// InvalidRequestError reports a precondition violation by the caller. It is
// not a content problem and retrying will not help.
type InvalidRequestError struct {
	Reason string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request: %s: %v", e.Reason, e.Err)
	}
	return "invalid request: " + e.Reason
}

func (e *InvalidRequestError) Unwrap() error {
	return e.Err
}

// IsAllBackendsFailed reports whether err is an AllBackendsFailedError.
func IsAllBackendsFailed(err error) bool {
	var target *AllBackendsFailedError
	return errors.As(err, &target)
}

// IsInvalidRequest reports whether err is an InvalidRequestError.
func IsInvalidRequest(err error) bool {
	var target *InvalidRequestError
	return errors.As(err, &target)
}

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
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
)

// Chain tries an ordered list of backends until one produces the artifact.
// A Chain is immutable and safe for concurrent Run calls on distinct paths.
type Chain struct {
	direction Direction
	backends  []NamedBackend
	timeout   time.Duration
	logger    zerolog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainTimeout bounds each backend attempt. Zero means no limit.
func WithChainTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		c.timeout = d
	}
}

// WithChainLogger sets the logger used for per-attempt events.
func WithChainLogger(l zerolog.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = l
	}
}

// NewChain builds a chain for direction from backends, tried in the given order.
func NewChain(direction Direction, backends []NamedBackend, opts ...ChainOption) (*Chain, error) {
	if !direction.Valid() {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("unknown direction %s", direction)}
	}
	if len(backends) == 0 {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("no backends configured for %s", direction)}
	}
	seen := make(map[string]bool, len(backends))
	for i, nb := range backends {
		if nb.Name == "" || nb.Backend == nil {
			return nil, &InvalidRequestError{Reason: fmt.Sprintf("backend %d is missing a name or implementation", i)}
		}
		if seen[nb.Name] {
			return nil, &InvalidRequestError{Reason: fmt.Sprintf("backend %q listed twice", nb.Name)}
		}
		seen[nb.Name] = true
	}

	c := &Chain{
		direction: direction,
		backends:  append([]NamedBackend(nil), backends...),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Direction returns the direction the chain converts.
func (c *Chain) Direction() Direction {
	return c.direction
}

// Names returns the backend names in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, len(c.backends))
	for i, nb := range c.backends {
		names[i] = nb.Name
	}
	return names
}

// Run executes the backends in order and stops at the first success. When
// every backend fails, the returned Outcome holds the full attempt log and
// the error is an *AllBackendsFailedError. Backend errors and panics never
// escape Run.
func (c *Chain) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := c.checkRequest(req); err != nil {
		return nil, err
	}

	log := c.logger.With().
		Str("direction", c.direction.String()).
		Str("source", req.Source).
		Str("destination", req.Destination).
		Logger()

	out := &Outcome{Direction: c.direction}

	for i, nb := range c.backends {
		if err := discardDestination(req.Destination); err != nil {
			return out, fmt.Errorf("clear destination before %s: %w", nb.Name, err)
		}

		log.Debug().Str("backend", nb.Name).Int("attempt", i+1).Msg("trying backend")

		start := time.Now()
		err := c.attempt(ctx, nb, req)
		if err == nil {
			err = checkArtifact(req.Destination)
		}
		elapsed := time.Since(start)

		if err == nil {
			out.Attempts = append(out.Attempts, Attempt{Backend: nb.Name, Duration: elapsed})
			out.Succeeded = true
			out.ProducedBy = nb.Name
			log.Info().Str("backend", nb.Name).Dur("elapsed", elapsed).Msg("conversion succeeded")
			return out, nil
		}

		out.Attempts = append(out.Attempts, Attempt{
			Backend:  nb.Name,
			Err:      &BackendError{Backend: nb.Name, Err: err},
			Duration: elapsed,
		})
		log.Warn().Err(err).Str("backend", nb.Name).Dur("elapsed", elapsed).Msg("backend failed")

		if cerr := discardDestination(req.Destination); cerr != nil {
			log.Error().Err(cerr).Str("backend", nb.Name).Msg("could not remove partial output")
		}

		if ctx.Err() != nil {
			return out, fmt.Errorf("%s conversion stopped after %d attempt(s): %w",
				c.direction, len(out.Attempts), errors.Join(ctx.Err(), &AllBackendsFailedError{
					Direction: c.direction,
					Attempts:  out.Attempts,
				}))
		}
	}

	return out, &AllBackendsFailedError{Direction: c.direction, Attempts: out.Attempts}
}

func (c *Chain) checkRequest(req Request) error {
	if req.Direction != 0 && req.Direction != c.direction {
		return &InvalidRequestError{Reason: fmt.Sprintf("%s request sent to %s chain", req.Direction, c.direction)}
	}
	if req.Source == "" {
		return &InvalidRequestError{Reason: "source path is empty"}
	}
	if req.Destination == "" {
		return &InvalidRequestError{Reason: "destination path is empty"}
	}
	src, err := filepath.Abs(req.Source)
	if err != nil {
		return &InvalidRequestError{Reason: "resolve source path", Err: err}
	}
	dst, err := filepath.Abs(req.Destination)
	if err != nil {
		return &InvalidRequestError{Reason: "resolve destination path", Err: err}
	}
	if src == dst {
		return &InvalidRequestError{Reason: "source and destination are the same file"}
	}
	return nil
}

// attempt runs one backend with panic isolation and the per-attempt timeout.
// A backend that ignores cancellation is abandoned once the deadline passes;
// its staged output is never committed because the commit re-checks ctx.
func (c *Chain) attempt(ctx context.Context, nb NamedBackend, req Request) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- c.safeConvert(ctx, nb, req.Source, req.Destination)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("backend did not finish: %w", ctx.Err())
	}
}

func (c *Chain) safeConvert(ctx context.Context, nb NamedBackend, src, dst string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("backend", nb.Name).
				Bytes("stack", debug.Stack()).
				Msgf("backend panicked: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return nb.Backend.Convert(ctx, src, dst)
}

// checkArtifact confirms a backend that reported success left a non-empty
// regular file behind.
func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("backend reported success but no artifact was written")
		}
		return fmt.Errorf("stat artifact: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("artifact %s is not a regular file", path)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}
	return nil
}

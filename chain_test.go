package docflip

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func chainRequest(t *testing.T) Request {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Request{Source: src, Destination: filepath.Join(dir, "out.docx"), Direction: Extraction}
}

func mustChain(t *testing.T, backends []NamedBackend, opts ...ChainOption) *Chain {
	t.Helper()
	c, err := NewChain(Extraction, backends, opts...)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	return c
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := failing("no text layer")
	second := writing("artifact")
	third := writing("never")

	c := mustChain(t, []NamedBackend{
		{Name: "first", Backend: first},
		{Name: "second", Backend: second},
		{Name: "third", Backend: third},
	})
	req := chainRequest(t)

	out, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Succeeded || out.ProducedBy != "second" {
		t.Fatalf("outcome = %+v, want success by second", out)
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(out.Attempts))
	}
	if out.Attempts[0].Succeeded() || !out.Attempts[1].Succeeded() {
		t.Errorf("attempt results = %v, %v", out.Attempts[0].Err, out.Attempts[1].Err)
	}
	if n := third.calls.Load(); n != 0 {
		t.Errorf("third backend ran %d times, want 0", n)
	}
	data, err := os.ReadFile(req.Destination)
	if err != nil || string(data) != "artifact" {
		t.Errorf("destination = %q, %v", data, err)
	}
}

func TestChainLastBackendWins(t *testing.T) {
	c := mustChain(t, []NamedBackend{
		{Name: "a", Backend: failing("a broke")},
		{Name: "b", Backend: failing("b broke")},
		{Name: "c", Backend: writing("ok")},
	})

	out, err := c.Run(context.Background(), chainRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ProducedBy != "c" || len(out.Attempts) != 3 {
		t.Fatalf("outcome = %+v", out)
	}
	if got := len(out.Failures()); got != 2 {
		t.Errorf("got %d failures, want 2", got)
	}

	successes := 0
	for _, a := range out.Attempts {
		if a.Succeeded() {
			successes++
		}
	}
	if successes != 1 || !out.Attempts[len(out.Attempts)-1].Succeeded() {
		t.Errorf("want exactly one success, last in the log")
	}
}

func TestChainAllFail(t *testing.T) {
	a, b := failing("engine not installed"), failing("unreadable content")
	c := mustChain(t, []NamedBackend{
		{Name: "a", Backend: a},
		{Name: "b", Backend: b},
	})
	req := chainRequest(t)
	if err := os.WriteFile(req.Destination, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := c.Run(context.Background(), req)
	if !IsAllBackendsFailed(err) {
		t.Fatalf("err = %v, want AllBackendsFailedError", err)
	}
	if out == nil || out.Succeeded || len(out.Attempts) != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("calls = %d, %d; want each backend once", a.calls.Load(), b.calls.Load())
	}

	msg := err.Error()
	for _, want := range []string{"a: engine not installed", "b: unreadable content"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
	if _, err := os.Stat(req.Destination); !os.IsNotExist(err) {
		t.Errorf("stale destination survived a failed run: %v", err)
	}
}

func TestAttemptCause(t *testing.T) {
	tests := []struct {
		name    string
		attempt Attempt
		reason  string
		cause   string
	}{
		{"success", Attempt{Backend: "a"}, "", ""},
		{"backend error", Attempt{Backend: "a", Err: &BackendError{Backend: "a", Err: errors.New("engine not installed")}}, "a: engine not installed", "engine not installed"},
		{"wrapped backend error", Attempt{Backend: "b", Err: fmt.Errorf("retry: %w", &BackendError{Backend: "b", Err: errors.New("timeout")})}, "retry: b: timeout", "timeout"},
		{"plain error", Attempt{Backend: "c", Err: errors.New("boom")}, "boom", "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.attempt.Reason(); got != tt.reason {
				t.Errorf("Reason() = %q, want %q", got, tt.reason)
			}
			if got := tt.attempt.Cause(); got != tt.cause {
				t.Errorf("Cause() = %q, want %q", got, tt.cause)
			}
		})
	}
}

func TestChainUnwrapsBackendErrors(t *testing.T) {
	c := mustChain(t, []NamedBackend{
		{Name: "missing", Backend: BackendFunc(func(context.Context, string, string) error {
			return fmt.Errorf("soffice: %w", ErrBackendUnavailable)
		})},
	})
	_, err := c.Run(context.Background(), chainRequest(t))
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("errors.Is(%v, ErrBackendUnavailable) = false", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Backend != "missing" {
		t.Errorf("want a BackendError for missing, got %v", err)
	}
}

func TestChainRecoversPanics(t *testing.T) {
	next := writing("recovered")
	c := mustChain(t, []NamedBackend{
		{Name: "crashy", Backend: BackendFunc(func(context.Context, string, string) error {
			panic("nil page dictionary")
		})},
		{Name: "next", Backend: next},
	})

	out, err := c.Run(context.Background(), chainRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ProducedBy != "next" {
		t.Fatalf("ProducedBy = %q, want next", out.ProducedBy)
	}
	if reason := out.Attempts[0].Reason(); !strings.Contains(reason, "panic") || !strings.Contains(reason, "nil page dictionary") {
		t.Errorf("panic reason = %q", reason)
	}
}

func TestChainAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c := mustChain(t, []NamedBackend{
		{Name: "stuck", Backend: BackendFunc(func(context.Context, string, string) error {
			<-release
			return nil
		})},
		{Name: "quick", Backend: writing("done")},
	}, WithChainTimeout(50*time.Millisecond))

	out, err := c.Run(context.Background(), chainRequest(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ProducedBy != "quick" {
		t.Fatalf("ProducedBy = %q, want quick", out.ProducedBy)
	}
	if !errors.Is(out.Attempts[0].Err, context.DeadlineExceeded) {
		t.Errorf("stuck attempt err = %v, want deadline exceeded", out.Attempts[0].Err)
	}
}

func TestChainDiscardsPartialOutput(t *testing.T) {
	var sawLeftover bool
	c := mustChain(t, []NamedBackend{
		{Name: "partial", Backend: BackendFunc(func(_ context.Context, _, dst string) error {
			if err := os.WriteFile(dst, []byte("PK\x03\x04 truncated"), 0o644); err != nil {
				return err
			}
			return errors.New("write interrupted")
		})},
		{Name: "clean", Backend: BackendFunc(func(_ context.Context, _, dst string) error {
			if _, err := os.Stat(dst); err == nil {
				sawLeftover = true
			}
			return os.WriteFile(dst, []byte("complete"), 0o644)
		})},
	})

	req := chainRequest(t)
	if _, err := c.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sawLeftover {
		t.Error("second backend saw the first backend's partial output")
	}
	data, _ := os.ReadFile(req.Destination)
	if string(data) != "complete" {
		t.Errorf("destination = %q, want complete", data)
	}
}

func TestChainRejectsMissingArtifact(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		wantErr error
	}{
		{
			name:    "nothing written",
			backend: BackendFunc(func(context.Context, string, string) error { return nil }),
		},
		{
			name: "zero bytes",
			backend: BackendFunc(func(_ context.Context, _, dst string) error {
				return os.WriteFile(dst, nil, 0o644)
			}),
			wantErr: ErrEmptyOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustChain(t, []NamedBackend{{Name: "liar", Backend: tt.backend}})
			out, err := c.Run(context.Background(), chainRequest(t))
			if !IsAllBackendsFailed(err) {
				t.Fatalf("err = %v, want AllBackendsFailedError", err)
			}
			if out.Succeeded {
				t.Error("outcome marked successful")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantErr)
			}
		})
	}
}

func TestChainParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := writing("late")
	c := mustChain(t, []NamedBackend{
		{Name: "first", Backend: BackendFunc(func(ctx context.Context, _, _ string) error {
			return ctx.Err()
		})},
		{Name: "second", Backend: second},
	})

	out, err := c.Run(ctx, chainRequest(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !IsAllBackendsFailed(err) {
		t.Errorf("err = %v, want it to carry the attempt log", err)
	}
	if len(out.Attempts) != 1 || second.calls.Load() != 0 {
		t.Errorf("chain kept going after cancellation: %d attempts", len(out.Attempts))
	}
}

func TestNewChainValidation(t *testing.T) {
	ok := writing("x")
	tests := []struct {
		name      string
		direction Direction
		backends  []NamedBackend
	}{
		{"no backends", Extraction, nil},
		{"bad direction", Direction(9), []NamedBackend{{Name: "a", Backend: ok}}},
		{"duplicate names", Synthesis, []NamedBackend{{Name: "a", Backend: ok}, {Name: "a", Backend: ok}}},
		{"unnamed", Synthesis, []NamedBackend{{Backend: ok}}},
		{"nil backend", Synthesis, []NamedBackend{{Name: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewChain(tt.direction, tt.backends); !IsInvalidRequest(err) {
				t.Errorf("NewChain err = %v, want InvalidRequestError", err)
			}
		})
	}
}

func TestChainRejectsInvalidRequests(t *testing.T) {
	b := writing("x")
	c := mustChain(t, []NamedBackend{{Name: "a", Backend: b}})
	valid := chainRequest(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"same file", Request{Source: valid.Source, Destination: valid.Source, Direction: Extraction}},
		{"wrong direction", Request{Source: valid.Source, Destination: valid.Destination, Direction: Synthesis}},
		{"empty source", Request{Destination: valid.Destination}},
		{"empty destination", Request{Source: valid.Source}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Run(context.Background(), tt.req)
			if !IsInvalidRequest(err) {
				t.Fatalf("err = %v, want InvalidRequestError", err)
			}
			if out != nil {
				t.Errorf("outcome = %+v, want nil", out)
			}
		})
	}
	if n := b.calls.Load(); n != 0 {
		t.Errorf("backend ran %d times on invalid requests", n)
	}
}

func TestChainConcurrentRuns(t *testing.T) {
	c := mustChain(t, []NamedBackend{
		{Name: "flaky", Backend: failing("busy")},
		{Name: "steady", Backend: BackendFunc(func(_ context.Context, src, dst string) error {
			return os.WriteFile(dst, []byte(filepath.Base(dst)), 0o644)
		})},
	})

	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dst := filepath.Join(dir, fmt.Sprintf("out-%d.docx", i))
			out, err := c.Run(context.Background(), Request{Source: src, Destination: dst})
			if err != nil {
				errs <- err
				return
			}
			if out.ProducedBy != "steady" {
				errs <- fmt.Errorf("run %d produced by %q", i, out.ProducedBy)
				return
			}
			if data, _ := os.ReadFile(dst); string(data) != filepath.Base(dst) {
				errs <- fmt.Errorf("run %d wrote %q", i, data)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

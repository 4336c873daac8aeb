// Package providertest provides deterministic provider doubles for tests.
package providertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/provider"
)

// Stub is a configurable in-process provider. The zero value returns an
// empty text; set Text, Err, Delay or Fn to shape its behaviour.
type Stub struct {
	// Text is returned on success.
	Text string

	// Err, when non-nil, is returned instead of a response.
	Err error

	// Delay is waited before responding. A context that ends first yields
	// a Timeout ProviderError, as a real HTTP adapter would.
	Delay time.Duration

	// Fn, when set, computes the response and takes precedence over Text and Err.
	Fn func(ctx context.Context, req *provider.Request) (*provider.Response, error)

	calls atomic.Int64

	mu       sync.Mutex
	requests []provider.Request
	closed   bool
}

var _ provider.Provider = (*Stub)(nil)

// Respond returns a Stub that always answers with text.
func Respond(text string) *Stub { return &Stub{Text: text} }

// Fail returns a Stub that always fails with a ProviderError of kind.
func Fail(kind api.ProviderErrorKind) *Stub {
	return &Stub{Err: api.NewProviderError(kind, "stub failure", nil)}
}

// Hang returns a Stub that only answers after d, so a shorter call
// timeout turns it into a Timeout failure.
func Hang(d time.Duration, text string) *Stub { return &Stub{Delay: d, Text: text} }

// Name returns "stub".
func (s *Stub) Name() string { return "stub" }

// Complete records the request and answers according to the configuration.
func (s *Stub) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.requests = append(s.requests, *req)
	s.mu.Unlock()

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, api.NewProviderError(api.ProviderTimeout, "stub call interrupted", ctx.Err())
		case <-timer.C:
		}
	}

	if s.Fn != nil {
		return s.Fn(ctx, req)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &provider.Response{
		Text:  s.Text,
		Model: req.Model,
		Usage: provider.Usage{InputTokens: len(req.UserPrompt), OutputTokens: len(s.Text)},
	}, nil
}

// Close marks the stub closed.
func (s *Stub) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Calls returns how many times Complete was invoked.
func (s *Stub) Calls() int { return int(s.calls.Load()) }

// Requests returns a copy of every request received.
func (s *Stub) Requests() []provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Request(nil), s.requests...)
}

// Closed reports whether Close was called.
func (s *Stub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Package llm talks to hosted chat-completion models. Every call resolves to
// one of three outcomes so callers can pick a fallback without inspecting
// provider errors.
package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type Kind int

const (
	OK Kind = iota
	QuotaExceeded
	Failed
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case QuotaExceeded:
		return "quota_exceeded"
	}
	return "failed"
}

// Request is a two-message exchange: a system instruction and one user turn.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int32
}

// Result carries the reply text when Kind is OK, and the underlying error
// otherwise.
type Result struct {
	Kind Kind
	Text string
	Err  error
}

func Success(text string) Result { return Result{Kind: OK, Text: text} }

func Quota(err error) Result { return Result{Kind: QuotaExceeded, Err: err} }

func Failure(err error) Result { return Result{Kind: Failed, Err: err} }

// Provider completes a Request. Implementations never retry.
type Provider interface {
	Complete(ctx context.Context, req Request) Result
	Name() string
}

// ErrNotConfigured is returned by a provider without an API key. It is
// classified as quota so the service drops into demo mode.
var ErrNotConfigured = errors.New("llm: api key not configured")

// looksLikeQuota matches provider messages that mean the account is out of
// quota or rate limited.
func looksLikeQuota(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted")
}

// Static is a Provider that always returns the same Result. It backs tests
// and the demo configuration.
type Static struct {
	Result Result

	mu    sync.Mutex
	calls []Request
}

func (s *Static) Complete(_ context.Context, req Request) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.Result
}

// Calls returns the requests seen so far.
func (s *Static) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}

func (s *Static) Name() string { return "static" }

// Package extract defines the boundary to the LLM extraction service. The
// core treats extraction as a black box returning typed candidates plus a
// free-text rationale.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrExtractionUnavailable signals that the boundary failed after bounded
// retries. The affected agent contributes zero decisions that cycle.
var ErrExtractionUnavailable = errors.New("extract: extraction unavailable")

// Kind tags the type of extracted candidate.
type Kind string

const (
	KindCommitment Kind = "commitment"
	KindTodo       Kind = "todo"
	KindDraft      Kind = "draft"
)

// Candidate is one structured extraction result.
type Candidate struct {
	Kind      Kind       `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Rationale string     `json:"rationale"`
	Due       *time.Time `json:"due,omitempty"`
}

// Extractor is the LLM boundary. Implementations are expected to be
// network-backed; callers bound every call with a context deadline.
type Extractor interface {
	Extract(ctx context.Context, prompt string) (*Candidate, error)
}

// Retrying wraps an Extractor with a bounded transport-failure retry.
// Semantic wrongness is never retried: a candidate the user rejects flows
// back through feedback, not through re-extraction.
type Retrying struct {
	inner    Extractor
	attempts int
	backoff  time.Duration
}

// NewRetrying wraps inner with up to attempts tries (minimum 1).
func NewRetrying(inner Extractor, attempts int, backoff time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Retrying{inner: inner, attempts: attempts, backoff: backoff}
}

// Extract calls the inner extractor, retrying transport failures.
func (r *Retrying) Extract(ctx context.Context, prompt string) (*Candidate, error) {
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrExtractionUnavailable, ctx.Err())
			case <-time.After(r.backoff):
			}
		}
		cand, err := r.inner.Extract(ctx, prompt)
		if err == nil {
			return cand, nil
		}
		lastErr = err
		slog.Debug("Extraction attempt failed", "attempt", i+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrExtractionUnavailable, lastErr)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, prompt string) (*Candidate, error)

// Extract implements Extractor.
func (f Func) Extract(ctx context.Context, prompt string) (*Candidate, error) {
	return f(ctx, prompt)
}

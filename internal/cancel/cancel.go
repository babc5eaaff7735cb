// Package cancel implements the cooperative cancellation token observed
// by the recorder and replayer at every suspension point (§5, §9 of the
// design): a single process-wide flag with a wait primitive, modeled as
// a thin wrapper around context.Context so it composes with the
// standard library's blocking I/O APIs without coupling callers to any
// particular task runtime.
package cancel

import (
	"context"

	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
)

// Token is observed at every suspension point: HTTP send, HTTP body
// read, file I/O, and sleep_until. It wraps a context.Context so
// standard blocking calls (http.NewRequestWithContext, <-ctx.Done())
// participate directly.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a fresh, untripped Token.
func New() *Token {
	ctx, cancel := context.WithCancel(context.Background())
	return &Token{ctx: ctx, cancel: cancel}
}

// FromContext wraps an existing context (e.g. one carrying the CLI's
// signal-triggered cancellation) as a Token.
func FromContext(ctx context.Context) *Token {
	ctx, cancel := context.WithCancel(ctx)
	return &Token{ctx: ctx, cancel: cancel}
}

// Context returns the underlying context, for passing to context-aware
// APIs (http.NewRequestWithContext, etc.).
func (t *Token) Context() context.Context {
	return t.ctx
}

// Trip cancels the token. Safe to call more than once.
func (t *Token) Trip() {
	t.cancel()
}

// Cancelled reports whether the token has been tripped, without
// blocking.
func (t *Token) Cancelled() bool {
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}

// Check returns hlserr.ErrCancelled if the token has been tripped, else
// nil — a convenient poll at the top of a loop iteration or before an
// I/O call.
func (t *Token) Check() error {
	if t.Cancelled() {
		return hlserr.ErrCancelled
	}
	return nil
}

// Done returns a channel closed when the token is tripped, for use in
// select statements racing against I/O or a timer.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

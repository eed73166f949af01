// Package interrupt provides the cooperative cancellation probe used by
// long-running IVF operations, backed by context.Context instead of a
// global flag.
package interrupt

import "context"

// Signal wraps a context and answers the "is_interrupted" probe the search
// core polls once per query.
type Signal struct {
	ctx context.Context
}

// FromContext wraps ctx. A nil ctx is treated as context.Background(), which
// is never interrupted — this keeps call sites that don't care about
// cancellation simple.
func FromContext(ctx context.Context) Signal {
	if ctx == nil {
		ctx = context.Background()
	}
	return Signal{ctx: ctx}
}

// Interrupted reports whether the wrapped context has been cancelled.
func (s Signal) Interrupted() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// Err returns the context's cancellation cause, or nil if not interrupted.
func (s Signal) Err() error {
	return s.ctx.Err()
}

package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds fn to the given duration via a derived context. A zero
// or negative timeout disables the bound. When the deadline fires before fn
// returns, the result distinguishes the deadline from a cancelled parent.
//
// fn keeps running in its goroutine after a timeout; it is expected to
// honour the derived context and unwind promptly.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(bounded) }()

	select {
	case err := <-done:
		return err
	case <-bounded.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}

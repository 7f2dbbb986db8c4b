package middleware

import (
	"context"
	"time"

	"github.com/smartcontractkit/operations-bus/operations"
)

// Timeout bounds the rest of the chain with a deadline of d. Handlers observe it through
// Bundle.GetContext. A non-positive d disables the deadline.
func Timeout(d time.Duration) operations.Middleware {
	return operations.MiddlewareFunc("timeout", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		return next(ctx)
	})
}

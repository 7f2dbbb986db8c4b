package middleware

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// RetryPolicy defines the arguments to control the retry behavior.
type RetryPolicy struct {
	// MaxAttempts is the total number of executions, the first included. 0 and 1 disable retries.
	MaxAttempts uint
	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// options returns the 'avast/retry' functional options for the retry policy.
func (p RetryPolicy) options() []retry.Option {
	return []retry.Option{
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	}
}

// Retry re-runs the rest of the chain while it fails, up to policy.MaxAttempts executions.
// The error of the last attempt is returned unchanged. Failures wrapped with
// NewUnrecoverableError stop the retries immediately.
func Retry(policy RetryPolicy, lggr logger.Logger) operations.Middleware {
	return operations.MiddlewareFunc("retry", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		if policy.MaxAttempts <= 1 {
			return next(ctx)
		}

		opts := policy.options()
		opts = append(opts,
			retry.Context(ctx),
			retry.OnRetry(func(attempt uint, err error) {
				lggr.Infow("Operation failed. Retrying...",
					"operation", inv.Def.ID, "dispatch_id", inv.DispatchID, "attempt", attempt, "error", err)
			}),
		)

		return retry.DoWithData(func() (any, error) {
			return next(ctx)
		}, opts...)
	})
}

// NewUnrecoverableError creates an error that indicates an unrecoverable error.
// If this error is returned inside an operation, the operation will no longer retry.
// This allows the operation to fail fast if it encounters an unrecoverable error.
func NewUnrecoverableError(err error) error {
	return retry.Unrecoverable(err)
}

package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/smartcontractkit/operations-bus/operations"
)

// ErrRateLimited is returned when an operation is dispatched faster than its limit allows.
var ErrRateLimited = errors.New("operation rate limited")

// RateLimit applies a token bucket of rps tokens per second and the given burst to each
// operation ID. Dispatches over the limit fail with ErrRateLimited without running.
// A non-positive rps or burst disables the limit.
func RateLimit(rps float64, burst int) operations.Middleware {
	l := newKeyLimiter(rps, burst)

	return operations.MiddlewareFunc("rate_limit", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		if !l.allow(inv.Def.ID, time.Now()) {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, inv.Def.Identity())
		}

		return next(ctx)
	})
}

// keyLimiter holds one token bucket per key.
type keyLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	byKey map[string]*rate.Limiter
}

// newKeyLimiter returns nil if the arguments disable limiting.
func newKeyLimiter(rps float64, burst int) *keyLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}

	return &keyLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		byKey: make(map[string]*rate.Limiter),
	}
}

func (l *keyLimiter) allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	lim, ok := l.byKey[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.byKey[key] = lim
	}
	l.mu.Unlock()

	return lim.AllowN(now, 1)
}

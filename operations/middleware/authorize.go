package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartcontractkit/operations-bus/operations"
)

// ErrUnauthorized is returned when the principal of the context may not run an operation.
var ErrUnauthorized = errors.New("unauthorized")

// Authorizer decides whether principal may run the dispatch described by inv.
type Authorizer interface {
	Allowed(ctx context.Context, principal string, inv operations.Invocation) bool
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(ctx context.Context, principal string, inv operations.Invocation) bool

// Allowed implements Authorizer.
func (f AuthorizerFunc) Allowed(ctx context.Context, principal string, inv operations.Invocation) bool {
	return f(ctx, principal, inv)
}

type principalCtxKey struct{}

// WithPrincipal returns ctx carrying the identity dispatches are made on behalf of.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, principal)
}

// PrincipalFrom returns the principal carried by ctx.
func PrincipalFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(string)
	return p, ok && p != ""
}

// Authorize rejects top-level dispatches whose principal is missing or not allowed by a.
// Nested dispatches run under the authorization of the dispatch that made them.
func Authorize(a Authorizer) operations.Middleware {
	return operations.MiddlewareFunc("authorize", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		if inv.ParentID != "" {
			return next(ctx)
		}
		principal, ok := PrincipalFrom(ctx)
		if !ok {
			return nil, fmt.Errorf("%w: no principal for %s", ErrUnauthorized, inv.Def.Identity())
		}
		if !a.Allowed(ctx, principal, inv) {
			return nil, fmt.Errorf("%w: %s may not run %s", ErrUnauthorized, principal, inv.Def.Identity())
		}

		return next(ctx)
	})
}

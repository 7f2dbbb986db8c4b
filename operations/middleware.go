package operations

import "context"

// Invocation is the read-only view of a dispatch that middleware receive.
type Invocation struct {
	Def        Definition
	Input      any
	DispatchID string
	// ParentID is the dispatch ID of the orchestrating operation, empty for top-level dispatches.
	ParentID string
}

// Next invokes the rest of the chain.
type Next func(ctx context.Context) (any, error)

// Middleware wraps the execution step of an operation. It may act before and after calling
// next, translate a failure, or not call next at all (short-circuit), in which case its return
// value is the dispatch result. Middleware must not branch business logic.
type Middleware interface {
	Name() string
	Handle(ctx context.Context, inv Invocation, next Next) (any, error)
}

type middlewareFunc struct {
	name string
	fn   func(ctx context.Context, inv Invocation, next Next) (any, error)
}

func (m middlewareFunc) Name() string { return m.name }

func (m middlewareFunc) Handle(ctx context.Context, inv Invocation, next Next) (any, error) {
	return m.fn(ctx, inv, next)
}

// MiddlewareFunc adapts a function into a named Middleware.
func MiddlewareFunc(name string, fn func(ctx context.Context, inv Invocation, next Next) (any, error)) Middleware {
	return middlewareFunc{name: name, fn: fn}
}

// Chain composes mws around terminal. The first middleware is the outermost: it sees the
// earliest "before" and the latest "after".
func Chain(inv Invocation, mws []Middleware, terminal Next) Next {
	next := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context) (any, error) {
			return mw.Handle(ctx, inv, inner)
		}
	}

	return next
}

package operations

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// Bus dispatches operation instances. It holds only configuration shared by every dispatch,
// so one Bus is safe for concurrent use by any number of invocation contexts.
// Use NewBus to create a new Bus.
type Bus struct {
	lggr       logger.Logger
	resolver   dependency.Resolver
	middleware []Middleware
	byCategory map[Category][]Middleware
}

// BusOption is a functional option for configuring a Bus.
type BusOption func(*Bus)

// WithBusMiddleware adds middleware that wraps every dispatch. They are the outermost links of the
// chain, in the order given.
func WithBusMiddleware(mws ...Middleware) BusOption {
	return func(b *Bus) {
		b.middleware = append(b.middleware, mws...)
	}
}

// WithCategoryMiddleware adds middleware that wraps every dispatch of one category. They run
// inside the Bus-wide middleware and outside the operation's own.
func WithCategoryMiddleware(c Category, mws ...Middleware) BusOption {
	return func(b *Bus) {
		b.byCategory[c] = append(b.byCategory[c], mws...)
	}
}

// NewBus creates a Bus that resolves dependencies from resolver.
func NewBus(lggr logger.Logger, resolver dependency.Resolver, opts ...BusOption) *Bus {
	b := &Bus{
		lggr:       lggr,
		resolver:   resolver,
		byCategory: make(map[Category][]Middleware),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Logger returns the Bus logger.
func (b *Bus) Logger() logger.Logger { return b.lggr }

// chainFor returns Bus-wide, category and operation middleware, outermost first.
func (b *Bus) chainFor(def Definition, own []Middleware) []Middleware {
	cat := b.byCategory[def.Category]
	mws := make([]Middleware, 0, len(b.middleware)+len(cat)+len(own))
	mws = append(mws, b.middleware...)
	mws = append(mws, cat...)

	return append(mws, own...)
}

type dispatchCtxKey struct{}

// DispatchIDFrom returns the ID of the dispatch whose execution ctx belongs to.
func DispatchIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(dispatchCtxKey{}).(string)
	return id, ok
}

// Dispatch runs a new instance end to end:
//  1. the instance must be Created
//  2. its dependencies are resolved from the Bus resolver and it is booted
//  3. the middleware chain is composed around its handler
//  4. the chain runs; memoizable reads consult the invocation Scope in place of the handler
//  5. on success the instance is Completed; memoizable reads were stored in the Scope by then
//  6. on failure the instance is Failed and the failure is returned as is
//
// If resolution fails no business logic runs, the instance stays Created and must be discarded.
func Dispatch[IN, OUT, DEP any](ctx context.Context, bus *Bus, inst *Instance[IN, OUT, DEP]) (OUT, error) {
	var zero OUT
	def := inst.op.def
	id := uuid.NewString()
	lggr := bus.lggr.With("id", def.ID, "version", versionOf(def), "dispatch_id", id)

	if inst.lc.discarded.Load() {
		return zero, bus.lifecycleFailure(lggr, def, id, &LifecycleError{State: inst.State(), Action: "dispatch discarded instance"})
	}
	if s := inst.State(); s != StateCreated {
		return zero, bus.lifecycleFailure(lggr, def, id, &LifecycleError{State: s, Action: "dispatch"})
	}

	var deps DEP
	if err := dependency.Populate(bus.resolver, &deps); err != nil {
		inst.lc.discarded.Store(true)
		lggr.Errorw("Failed to resolve operation dependencies", "error", err)

		return zero, &Error{Kind: KindResolution, Op: def, DispatchID: id, Err: err}
	}
	if err := inst.Boot(deps); err != nil {
		return zero, bus.lifecycleFailure(lggr, def, id, err)
	}

	return execute(ctx, bus, lggr, inst, id)
}

// Run executes an instance the caller booted itself (see Operation.NewBooted). Apart from
// skipping dependency resolution it behaves exactly like Dispatch.
func Run[IN, OUT, DEP any](ctx context.Context, bus *Bus, inst *Instance[IN, OUT, DEP]) (OUT, error) {
	var zero OUT
	def := inst.op.def
	id := uuid.NewString()
	lggr := bus.lggr.With("id", def.ID, "version", versionOf(def), "dispatch_id", id)

	if s := inst.State(); s != StateBooted {
		action := "run"
		if s == StateCreated {
			action = "run before boot"
		}

		return zero, bus.lifecycleFailure(lggr, def, id, &LifecycleError{State: s, Action: action})
	}

	return execute(ctx, bus, lggr, inst, id)
}

func execute[IN, OUT, DEP any](
	ctx context.Context, bus *Bus, lggr logger.Logger, inst *Instance[IN, OUT, DEP], id string,
) (OUT, error) {
	var zero OUT
	op := inst.op
	def := op.def

	if err := inst.lc.transition(StateBooted, StateExecuting, "execute"); err != nil {
		return zero, bus.lifecycleFailure(lggr, def, id, err)
	}

	parentID, _ := DispatchIDFrom(ctx)
	inv := Invocation{Def: def, Input: inst.input, DispatchID: id, ParentID: parentID}
	ctx = context.WithValue(ctx, dispatchCtxKey{}, id)

	terminal := func(ctx context.Context) (any, error) {
		b := Bundle{
			Logger:     lggr,
			GetContext: func() context.Context { return ctx },
			Bus:        bus,
			DispatchID: id,
		}

		return op.handler(b, inst.deps, inst.input)
	}
	hit := new(atomic.Bool)
	ctx = context.WithValue(ctx, memoHitCtxKey{}, hit)
	if scope, key, ok := memoTarget(ctx, lggr, op, inst.input); ok {
		terminal = memoized(lggr, scope, key, hit, terminal)
	}
	chain := Chain(inv, bus.chainFor(def, op.middleware), terminal)

	res, err := chain(ctx)
	if err != nil {
		_ = inst.lc.transition(StateExecuting, StateFailed, "fail")
		return zero, &Error{Kind: KindExecution, Op: def, DispatchID: id, Err: err}
	}
	out, err := typedResult[OUT](res)
	if err != nil {
		_ = inst.lc.transition(StateExecuting, StateFailed, "fail")
		return zero, &Error{Kind: KindExecution, Op: def, DispatchID: id, Err: err}
	}
	_ = inst.lc.transition(StateExecuting, StateCompleted, "complete")

	return out, nil
}

type memoHitCtxKey struct{}

// MemoHit reports whether the dispatch ctx belongs to was answered from the invocation Scope
// instead of its handler. It is meaningful once the rest of the chain has returned.
func MemoHit(ctx context.Context) bool {
	hit, ok := ctx.Value(memoHitCtxKey{}).(*atomic.Bool)
	return ok && hit.Load()
}

// memoized is the innermost link of a memoizable read. Every middleware runs on a hit too, only
// the handler is skipped. Successful results are stored and the first stored value wins.
func memoized(lggr logger.Logger, scope *Scope, key ScopeKey, hit *atomic.Bool, next Next) Next {
	return func(ctx context.Context) (any, error) {
		if v, ok := scope.Lookup(key); ok {
			lggr.Debugw("Operation result found in scope. Returning memoized result", "scope_id", scope.ID())
			hit.Store(true)

			return v, nil
		}

		res, err := next(ctx)
		if err != nil {
			return nil, err
		}
		res = scope.Store(key, res)
		lggr.Debugw("Operation result memoized", "scope_id", scope.ID())

		return res, nil
	}
}

// memoTarget decides whether this dispatch takes part in memoization.
func memoTarget[IN, OUT, DEP any](
	ctx context.Context, lggr logger.Logger, op *Operation[IN, OUT, DEP], input IN,
) (*Scope, ScopeKey, bool) {
	if !op.memoize || op.def.Category != CategoryRead {
		return nil, ScopeKey{}, false
	}
	scope, ok := ScopeFrom(ctx)
	if !ok {
		return nil, ScopeKey{}, false
	}
	key, err := KeyFor(op.def, input)
	if err != nil {
		lggr.Warnw("Operation parameters cannot be fingerprinted. Executing without memoization", "error", err)
		return nil, ScopeKey{}, false
	}

	return scope, key, true
}

func (b *Bus) lifecycleFailure(lggr logger.Logger, def Definition, id string, err error) error {
	lggr.Errorw("Operation lifecycle violation", "error", err)

	return &Error{Kind: KindLifecycle, Op: def, DispatchID: id, Err: err}
}

// typedResult converts a chain result back to OUT. A nil result from a short-circuiting
// middleware is the zero OUT.
func typedResult[OUT any](v any) (OUT, error) {
	var zero OUT
	if v == nil {
		return zero, nil
	}
	out, ok := v.(OUT)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %s", ErrResultType, v, reflect.TypeFor[OUT]())
	}

	return out, nil
}

// ErrResultType is returned when a middleware short-circuits with a value of the wrong type.
var ErrResultType = errors.New("operations: unexpected result type")

func versionOf(def Definition) string {
	if def.Version == nil {
		return ""
	}

	return def.Version.String()
}

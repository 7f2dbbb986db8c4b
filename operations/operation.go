package operations

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// Category is the kind of business work an operation performs.
type Category string

const (
	// CategoryWrite is a command: it changes state.
	CategoryWrite Category = "write"
	// CategoryRead is a query: it reads state and may be memoized.
	CategoryRead Category = "read"
	// CategoryOrchestration is an action: it composes other operations.
	CategoryOrchestration Category = "orchestration"
)

// Bundle is what the Bus hands to an OperationHandler besides its dependencies and input.
// It contains the Logger, the context of the dispatch and the Bus for nested dispatches.
type Bundle struct {
	Logger     logger.Logger
	GetContext func() context.Context
	Bus        *Bus
	DispatchID string
}

// OperationHandler is the function signature of an operation's execution step.
// It reads only its input and its resolved dependencies.
type OperationHandler[IN, OUT, DEP any] func(b Bundle, deps DEP, input IN) (output OUT, err error)

// Definition is the metadata of an operation: ID, version, description and category.
// ID and version together form the operation identity.
type Definition struct {
	ID          string          `json:"id" yaml:"id"`
	Version     *semver.Version `json:"version" yaml:"version"`
	Description string          `json:"description" yaml:"description"`
	Category    Category        `json:"category" yaml:"category"`
}

// Identity returns "id@version".
func (d Definition) Identity() string {
	if d.Version == nil {
		return d.ID
	}

	return d.ID + "@" + d.Version.String()
}

// OperationOption configures an Operation at construction.
type OperationOption func(*operationOptions)

type operationOptions struct {
	middleware []Middleware
	memoize    bool
}

// WithMiddleware declares middleware that wraps every dispatch of the operation. They run
// inside the Bus-wide and category middleware, in the order given.
func WithMiddleware(mws ...Middleware) OperationOption {
	return func(o *operationOptions) {
		o.middleware = append(o.middleware, mws...)
	}
}

// WithMemoization allows the results of a read operation to be memoized in the invocation's
// Scope. Only use it when the data the query reads cannot change during one invocation
// context; the Bus cannot check that.
func WithMemoization() OperationOption {
	return func(o *operationOptions) {
		o.memoize = true
	}
}

// Operation is a reusable, versioned definition of a unit of business work.
// Use NewOperation, NewCommand, NewQuery or NewAction to create one, and New to create an
// Instance per dispatch.
type Operation[IN, OUT, DEP any] struct {
	def        Definition
	handler    OperationHandler[IN, OUT, DEP]
	middleware []Middleware
	memoize    bool
	needs      []dependency.Need
}

// NewOperation creates a new operation.
// Version can be created using semver.MustParse("1.0.0") or semver.New("1.0.0").
// It panics if memoization is requested for a category other than CategoryRead.
func NewOperation[IN, OUT, DEP any](
	id string, version *semver.Version, description string, category Category,
	handler OperationHandler[IN, OUT, DEP], opts ...OperationOption,
) *Operation[IN, OUT, DEP] {
	o := operationOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.memoize && category != CategoryRead {
		panic(fmt.Sprintf("operations: %s is a %s operation, only read operations can be memoized", id, category))
	}

	return &Operation[IN, OUT, DEP]{
		def: Definition{
			ID:          id,
			Version:     version,
			Description: description,
			Category:    category,
		},
		handler:    handler,
		middleware: o.middleware,
		memoize:    o.memoize,
		needs:      dependency.RequirementsOf[DEP](),
	}
}

// NewCommand creates a write operation.
func NewCommand[IN, OUT, DEP any](
	id string, version *semver.Version, description string, handler OperationHandler[IN, OUT, DEP], opts ...OperationOption,
) *Operation[IN, OUT, DEP] {
	return NewOperation(id, version, description, CategoryWrite, handler, opts...)
}

// NewQuery creates a read operation.
func NewQuery[IN, OUT, DEP any](
	id string, version *semver.Version, description string, handler OperationHandler[IN, OUT, DEP], opts ...OperationOption,
) *Operation[IN, OUT, DEP] {
	return NewOperation(id, version, description, CategoryRead, handler, opts...)
}

// NewAction creates an orchestration operation.
func NewAction[IN, OUT, DEP any](
	id string, version *semver.Version, description string, handler OperationHandler[IN, OUT, DEP], opts ...OperationOption,
) *Operation[IN, OUT, DEP] {
	return NewOperation(id, version, description, CategoryOrchestration, handler, opts...)
}

// ID returns the operation ID.
func (o *Operation[IN, OUT, DEP]) ID() string {
	return o.def.ID
}

// Version returns the operation semver version in string.
func (o *Operation[IN, OUT, DEP]) Version() string {
	return o.def.Version.String()
}

// Description returns the operation description.
func (o *Operation[IN, OUT, DEP]) Description() string {
	return o.def.Description
}

// Category returns the operation category.
func (o *Operation[IN, OUT, DEP]) Category() Category {
	return o.def.Category
}

// Def returns the operation definition.
func (o *Operation[IN, OUT, DEP]) Def() Definition {
	return o.def
}

// Memoized reports whether results of this operation may be memoized.
func (o *Operation[IN, OUT, DEP]) Memoized() bool {
	return o.memoize
}

// Middleware returns the middleware the operation declared.
func (o *Operation[IN, OUT, DEP]) Middleware() []Middleware {
	return slices.Clone(o.middleware)
}

// Requirements returns the dependencies declared by DEP.
func (o *Operation[IN, OUT, DEP]) Requirements() []dependency.Need {
	return slices.Clone(o.needs)
}

// New creates an instance in state Created with the given parameters.
// IN should be a value type: the instance keeps its own copy and never hands out a pointer to it.
func (o *Operation[IN, OUT, DEP]) New(input IN) *Instance[IN, OUT, DEP] {
	return &Instance[IN, OUT, DEP]{op: o, input: input}
}

// NewBooted creates an instance and boots it with deps supplied by the caller. Use it with
// Run in deployments that wire dependencies by hand; it behaves exactly like New followed by
// Dispatch resolving the same dependencies.
func (o *Operation[IN, OUT, DEP]) NewBooted(input IN, deps DEP) (*Instance[IN, OUT, DEP], error) {
	inst := o.New(input)
	if err := inst.Boot(deps); err != nil {
		return nil, err
	}

	return inst, nil
}

// DispatchJSON decodes raw into the operation's input and dispatches a new instance.
// An empty raw leaves the input at its zero value.
func (o *Operation[IN, OUT, DEP]) DispatchJSON(ctx context.Context, bus *Bus, raw []byte) (any, error) {
	var input IN
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, fmt.Errorf("operation %s input: %w", o.def.Identity(), err)
		}
	}

	return Dispatch(ctx, bus, o.New(input))
}

// Instance is a single dispatch of an Operation. It must not be reused.
type Instance[IN, OUT, DEP any] struct {
	op    *Operation[IN, OUT, DEP]
	input IN
	deps  DEP
	lc    lifecycle
}

// Operation returns the definition the instance was created from.
func (i *Instance[IN, OUT, DEP]) Operation() *Operation[IN, OUT, DEP] {
	return i.op
}

// Input returns a copy of the instance parameters.
func (i *Instance[IN, OUT, DEP]) Input() IN {
	return i.input
}

// State returns the current lifecycle state.
func (i *Instance[IN, OUT, DEP]) State() State {
	return i.lc.current()
}

// Boot stores the resolved dependencies and moves the instance from Created to Booted.
// It may be called once; any other call returns a *LifecycleError.
func (i *Instance[IN, OUT, DEP]) Boot(deps DEP) error {
	if i.lc.discarded.Load() {
		return &LifecycleError{State: i.lc.current(), Action: "boot discarded instance"}
	}
	i.lc.boot.Lock()
	defer i.lc.boot.Unlock()

	if s := i.lc.current(); s != StateCreated {
		return &LifecycleError{State: s, Action: "boot"}
	}
	// deps are written before the state is published, so Run never sees Booted without them
	i.deps = deps
	i.lc.state.Store(int32(StateBooted))

	return nil
}

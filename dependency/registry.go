package dependency

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Requirement identifies a capability an operation needs, e.g. "ledger".
type Requirement string

// Key is a Requirement bound to the Go type its value must have.
type Key[T any] struct {
	id Requirement
}

// NewKey returns a typed key for id.
func NewKey[T any](id string) Key[T] {
	return Key[T]{id: Requirement(id)}
}

// Requirement returns the untyped identifier of the key.
func (k Key[T]) Requirement() Requirement { return k.id }

// String implements fmt.Stringer.
func (k Key[T]) String() string { return string(k.id) }

// Resolver resolves a requirement to a value.
type Resolver interface {
	Resolve(id Requirement) (any, error)
}

// Checker reports whether a requirement is bound without building it.
type Checker interface {
	Has(id Requirement) bool
}

// Factory builds a dependency. It may resolve other requirements through r.
type Factory func(r Resolver) (any, error)

type lifetime int

const (
	transient lifetime = iota
	singleton
	instance
)

type binding struct {
	id       Requirement
	lifetime lifetime
	factory  Factory

	mu    sync.Mutex
	built bool
	val   any
}

// Registry maps requirements to factories, singletons or pre-built instances.
// Use NewRegistry to create one.
//
// Singleton builds are serialized registry-wide: a top-level resolution that has to build a
// singleton holds the build lock for its whole dependency walk. Mutually dependent singletons
// therefore yield a CycleError on whichever goroutine builds first, never a deadlock. Factories
// must resolve through the Resolver they are given; resolving from the Registry itself inside a
// singleton factory blocks forever.
type Registry struct {
	// mu serializes writes and the reads that happen before Freeze.
	mu       sync.Mutex
	frozen   atomic.Bool
	bindings map[Requirement]*binding
	building sync.Mutex
}

var (
	_ Resolver = (*Registry)(nil)
	_ Checker  = (*Registry)(nil)
)

// NewRegistry creates an empty, writable Registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[Requirement]*binding)}
}

// Register binds a transient factory: every resolution builds a new value.
func (r *Registry) Register(id Requirement, factory Factory) error {
	return r.bind(&binding{id: id, lifetime: transient, factory: factory})
}

// Singleton binds a factory that is built on first resolution and reused afterwards.
// A failed build is not cached; the next resolution tries again.
func (r *Registry) Singleton(id Requirement, factory Factory) error {
	return r.bind(&binding{id: id, lifetime: singleton, factory: factory})
}

// Instance binds a pre-built value.
func (r *Registry) Instance(id Requirement, val any) error {
	return r.bind(&binding{id: id, lifetime: instance, built: true, val: val})
}

// Provide binds val under the key's requirement. It is the typed form of Instance.
func Provide[T any](r *Registry, key Key[T], val T) error {
	return r.Instance(key.id, val)
}

func (r *Registry) bind(b *binding) error {
	if b.lifetime != instance && b.factory == nil {
		return fmt.Errorf("%w for %q", ErrNilFactory, b.id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot bind %q", ErrRegistryFrozen, b.id)
	}
	if _, exists := r.bindings[b.id]; exists {
		return DuplicateError{Requirement: b.id}
	}
	r.bindings[b.id] = b

	return nil
}

// Freeze closes the registry for writing. It must happen-before any concurrent Resolve.
// Calling Freeze more than once is harmless.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Has reports whether id is bound.
func (r *Registry) Has(id Requirement) bool {
	_, ok := r.lookup(id)
	return ok
}

// Requirements returns every bound requirement in sorted order.
func (r *Registry) Requirements() []Requirement {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	ids := make([]Requirement, 0, len(r.bindings))
	for id := range r.bindings {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// Resolve returns the value bound to id. It returns MissingError when nothing is bound.
func (r *Registry) Resolve(id Requirement) (any, error) {
	return r.resolve(id, nil, false)
}

func (r *Registry) lookup(id Requirement) (*binding, bool) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	b, ok := r.bindings[id]

	return b, ok
}

func (r *Registry) resolve(id Requirement, path []Requirement, locked bool) (any, error) {
	if slices.Contains(path, id) {
		return nil, CycleError{Path: append(slices.Clone(path), id)}
	}

	b, ok := r.lookup(id)
	if !ok {
		return nil, MissingError{Requirement: id}
	}

	switch b.lifetime {
	case instance:
		return b.val, nil
	case singleton:
		if v, ok := b.load(); ok {
			return v, nil
		}
		if !locked {
			r.building.Lock()
			defer r.building.Unlock()
			if v, ok := b.load(); ok {
				return v, nil
			}
		}
		v, err := r.build(b, path, true)
		if err != nil {
			return nil, err
		}

		return b.store(v), nil
	default:
		return r.build(b, path, locked)
	}
}

func (b *binding) load() (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.val, b.built
}

// store publishes v unless another build of the same resolution got there first.
func (b *binding) store(v any) any {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built {
		return b.val
	}
	b.val, b.built = v, true

	return v
}

// build runs the binding's factory and converts panics into ErrFactoryPanic.
func (r *Registry) build(b *binding, path []Requirement, locked bool) (val any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			val = nil
			err = fmt.Errorf("%w %q: %v", ErrFactoryPanic, b.id, rec)
		}
	}()

	val, err = b.factory(pathResolver{reg: r, path: append(slices.Clone(path), b.id), locked: locked})
	if err != nil {
		return nil, fmt.Errorf("dependency: build %q: %w", b.id, err)
	}

	return val, nil
}

// pathResolver is handed to factories so nested resolutions can detect cycles. locked is set
// when an enclosing singleton build already holds the build lock.
type pathResolver struct {
	reg    *Registry
	path   []Requirement
	locked bool
}

func (p pathResolver) Resolve(id Requirement) (any, error) {
	return p.reg.resolve(id, p.path, p.locked)
}

// Resolve resolves key from r and asserts the value's type.
func Resolve[T any](r Resolver, key Key[T]) (T, error) {
	var zero T

	raw, err := r.Resolve(key.id)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, WrongTypeError{
			Requirement: key.id,
			Want:        fmt.Sprintf("%T", (*T)(nil))[1:],
			Got:         fmt.Sprintf("%T", raw),
		}
	}

	return v, nil
}

// MustResolve is Resolve that panics on failure. Intended for composition roots and tests.
func MustResolve[T any](r Resolver, key Key[T]) T {
	v, err := Resolve(r, key)
	if err != nil {
		panic(err)
	}

	return v
}

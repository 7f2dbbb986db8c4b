package operations

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/smartcontractkit/operations-bus/dependency"
)

var (
	// ErrOperationNotFound is returned when no route matches a lookup.
	ErrOperationNotFound = errors.New("operation not found in registry")

	// ErrDuplicateOperation is returned when a route with the same identity is registered twice.
	ErrDuplicateOperation = errors.New("operation already registered")
)

// Route is an operation that can be looked up by definition and dispatched with JSON
// parameters. Every *Operation satisfies it.
type Route interface {
	Def() Definition
	Requirements() []dependency.Need
	DispatchJSON(ctx context.Context, bus *Bus, raw []byte) (any, error)
}

var _ Route = (*Operation[int, int, struct{}])(nil)

// OperationRegistry is the catalog of operations an application exposes. Routes are added
// during bootstrap, by the application or by its extension.
type OperationRegistry struct {
	mu     sync.RWMutex
	routes []Route
}

// NewOperationRegistry creates a new OperationRegistry with the provided routes.
func NewOperationRegistry(routes ...Route) *OperationRegistry {
	return &OperationRegistry{
		routes: routes,
	}
}

// RegisterOperation registers routes in the registry. It fails on the first route whose
// identity is already registered.
func RegisterOperation(r *OperationRegistry, routes ...Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, route := range routes {
		identity := route.Def().Identity()
		for _, existing := range r.routes {
			if existing.Def().Identity() == identity {
				return fmt.Errorf("%w: %s", ErrDuplicateOperation, identity)
			}
		}
		r.routes = append(r.routes, route)
	}

	return nil
}

// Retrieve retrieves a route based on its definition.
// The definition must match the operation's ID and version.
func (r *OperationRegistry) Retrieve(def Definition) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity := def.Identity()
	for _, route := range r.routes {
		if route.Def().Identity() == identity {
			return route, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, identity)
}

// RetrieveByID returns the route with the highest version registered under id.
func (r *OperationRegistry) RetrieveByID(id string) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found Route
	for _, route := range r.routes {
		def := route.Def()
		if def.ID != id {
			continue
		}
		if found == nil || found.Def().Version.LessThan(def.Version) {
			found = route
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}

	return found, nil
}

// Definitions returns the definitions of every route sorted by identity.
func (r *OperationRegistry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.routes))
	for _, route := range r.routes {
		defs = append(defs, route.Def())
	}
	slices.SortFunc(defs, func(a, b Definition) int {
		return strings.Compare(a.Identity(), b.Identity())
	})

	return defs
}

// Validate checks that every non-optional requirement of every route is bound in c.
// Bootstrap calls it so unresolvable operations are reported before any dispatch.
func (r *OperationRegistry) Validate(c dependency.Checker) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, route := range r.routes {
		if err := dependency.Check(c, route.Requirements()); err != nil {
			errs = append(errs, fmt.Errorf("operation %s: %w", route.Def().Identity(), err))
		}
	}

	return errors.Join(errs...)
}

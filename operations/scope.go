package operations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/ksuid"
)

// ErrNotSerializable is returned when parameters cannot be fingerprinted for memoization.
var ErrNotSerializable = errors.New("parameters cannot be serialized to JSON for fingerprinting")

// ScopeKey identifies a memoized result: the operation identity plus a fingerprint of its
// parameters.
type ScopeKey struct {
	Operation   string
	Fingerprint string
}

// KeyFor builds the ScopeKey for an operation and its parameters. The fingerprint is the
// sha256 of the JSON encoding of input.
func KeyFor(def Definition, input any) (ScopeKey, error) {
	b, err := json.Marshal(input)
	if err != nil {
		return ScopeKey{}, fmt.Errorf("operation %s: %w: %w", def.Identity(), ErrNotSerializable, err)
	}
	sum := sha256.Sum256(b)

	return ScopeKey{Operation: def.Identity(), Fingerprint: hex.EncodeToString(sum[:])}, nil
}

// Scope memoizes read results for one invocation context: one external request or trigger and
// everything it orchestrates. A Scope must not be shared between independent invocation
// contexts. Its mutex exists so that an orchestrator may deliberately share it with the
// concurrent branches it fans out to.
type Scope struct {
	id string

	mu      sync.Mutex
	entries map[ScopeKey]any
	ended   bool
}

// NewScope creates an empty Scope.
func NewScope() *Scope {
	return &Scope{
		id:      newID("scope"),
		entries: make(map[ScopeKey]any),
	}
}

// ID returns the scope identifier.
func (s *Scope) ID() string { return s.id }

// Lookup returns the memoized value for key.
func (s *Scope) Lookup(key ScopeKey) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.entries[key]

	return v, ok
}

// Store memoizes val under key. If another computation stored key first, that value wins and
// is returned. A scope that has ended stores nothing.
func (s *Scope) Store(key ScopeKey, val any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return val
	}
	if prev, ok := s.entries[key]; ok {
		return prev
	}
	s.entries[key] = val

	return val
}

// Get returns the memoized value for key, or runs compute, memoizes its result and returns it.
// Failures are returned and never memoized. compute runs without the scope lock held, so it
// may itself use the scope.
func (s *Scope) Get(key ScopeKey, compute func() (any, error)) (any, error) {
	if v, ok := s.Lookup(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}

	return s.Store(key, v), nil
}

// Len returns the number of memoized entries.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// End discards every entry. Afterwards the scope neither returns nor stores anything.
func (s *Scope) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ended = true
	clear(s.entries)
}

type scopeCtxKey struct{}

// BeginScope starts an invocation context: it returns ctx carrying a new, empty Scope.
func BeginScope(ctx context.Context) (context.Context, *Scope) {
	s := NewScope()
	return context.WithValue(ctx, scopeCtxKey{}, s), s
}

// ScopeFrom returns the Scope of the invocation context ctx belongs to.
func ScopeFrom(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeCtxKey{}).(*Scope)
	return s, ok
}

// WithScope runs fn inside a new invocation context and ends the scope when fn returns,
// whether it succeeded or not.
func WithScope(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, s := BeginScope(ctx)
	defer s.End()

	return fn(ctx)
}

// IsolateScope gives a concurrent branch of an orchestration its own, fresh Scope instead of
// the shared one. Nested dispatches made with the returned context do not see the parent's
// memoized results.
func IsolateScope(ctx context.Context) (context.Context, *Scope) {
	return BeginScope(ctx)
}

// newID generates a new ID with a given prefix.
//
// ksuids sort by creation time, which keeps scope IDs in log output in order.
func newID(prefix string) string {
	return prefix + "_" + ksuid.New().String()
}

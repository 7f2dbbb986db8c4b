package operations

import (
	"errors"
	"fmt"
)

// Kind classifies dispatch failures.
type Kind int

const (
	// KindResolution means a declared dependency could not be satisfied. No business logic ran.
	KindResolution Kind = iota + 1
	// KindLifecycle means the runtime was misused, e.g. an instance was booted or dispatched twice.
	KindLifecycle
	// KindExecution means the handler or a middleware failed.
	KindExecution
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "resolution"
	case KindLifecycle:
		return "lifecycle"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Error is returned by Dispatch and Run. It carries the failure kind and the identity of the
// operation that failed. The original failure is available through errors.Is and errors.As.
type Error struct {
	Kind       Kind
	Op         Definition
	DispatchID string
	Err        error
}

// Error implements the error interface. Execution failures keep the message of the original
// error unchanged.
func (e *Error) Error() string {
	if e.Kind == KindExecution {
		return e.Err.Error()
	}

	return fmt.Sprintf("operation %s: %s failure: %v", e.Op.Identity(), e.Kind, e.Err)
}

// Unwrap returns the original failure.
func (e *Error) Unwrap() error { return e.Err }

// LifecycleError reports an action attempted in a state that does not allow it.
type LifecycleError struct {
	State  State
	Action string
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	return fmt.Sprintf("operations: cannot %s: instance is %s", e.Action, e.State)
}

// Origin returns the innermost *Error in err's chain: the operation where the failure started.
// For a failure inside a nested dispatch this is the nested operation, not the orchestrator.
func Origin(err error) (*Error, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}
	for {
		var inner *Error
		if !errors.As(e.Err, &inner) {
			return e, true
		}
		e = inner
	}
}

// KindOf returns the kind of the originating failure in err.
func KindOf(err error) (Kind, bool) {
	e, ok := Origin(err)
	if !ok {
		return 0, false
	}

	return e.Kind, true
}

// OperationOf returns the definition of the operation where err originated.
func OperationOf(err error) (Definition, bool) {
	e, ok := Origin(err)
	if !ok {
		return Definition{}, false
	}

	return e.Op, true
}

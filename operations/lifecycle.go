package operations

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of an Instance.
type State int32

const (
	StateCreated State = iota
	StateBooted
	StateExecuting
	StateCompleted
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBooted:
		return "booted"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// lifecycle enforces the state machine with compare-and-swap transitions.
type lifecycle struct {
	// boot serializes Created -> Booted with the write of the dependencies.
	boot  sync.Mutex
	state atomic.Int32
	// discarded marks an instance whose resolution failed. It stays Created forever.
	discarded atomic.Bool
}

func (l *lifecycle) current() State {
	return State(l.state.Load())
}

// transition moves from -> to, or reports the state the instance was actually in.
func (l *lifecycle) transition(from, to State, action string) error {
	if l.state.CompareAndSwap(int32(from), int32(to)) {
		return nil
	}

	return &LifecycleError{State: l.current(), Action: action}
}

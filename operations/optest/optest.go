// Package optest provides utilities for operations testing.
package optest

import (
	"context"
	"testing"

	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// NewBus creates a Bus for testing that logs to the test output and resolves from an empty,
// frozen registry.
func NewBus(t *testing.T, opts ...operations.BusOption) *operations.Bus {
	t.Helper()

	reg := dependency.NewRegistry()
	reg.Freeze()

	return operations.NewBus(logger.Test(t), reg, opts...)
}

// NewBusWith creates a Bus for testing that resolves from reg. The registry is frozen.
func NewBusWith(t *testing.T, reg *dependency.Registry, opts ...operations.BusOption) *operations.Bus {
	t.Helper()

	reg.Freeze()

	return operations.NewBus(logger.Test(t), reg, opts...)
}

// Recorder is a middleware that appends "<name>.before" and "<name>.after" to a shared trace.
// It is not safe for concurrent dispatches.
func Recorder(name string, trace *[]string) operations.Middleware {
	return operations.MiddlewareFunc(name, func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		*trace = append(*trace, name+".before")
		res, err := next(ctx)
		*trace = append(*trace, name+".after")

		return res, err
	})
}

// Package extension is the optional registration hook of an application built on the bus.
//
// A hosting application may supply one Descriptor at bootstrap. When it does, its Register
// hook runs exactly once, before any dispatch is accepted, and may add dependency bindings
// and operation routes through the Host. When it does not, bootstrap does nothing: there is
// no default descriptor.
package extension

import (
	"context"
	"fmt"
	"reflect"

	"github.com/smartcontractkit/operations-bus/config"
	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// Host is what a Descriptor may touch during registration: the public contracts of the
// dependency registry, the operation catalog and the application configuration.
type Host struct {
	Dependencies *dependency.Registry
	Routes       *operations.OperationRegistry
	Config       *config.Config
}

// Descriptor is an externally supplied registration unit.
type Descriptor interface {
	Name() string
	Register(ctx context.Context, host Host) error
}

type descriptorFunc struct {
	name string
	fn   func(ctx context.Context, host Host) error
}

func (d descriptorFunc) Name() string { return d.name }

func (d descriptorFunc) Register(ctx context.Context, host Host) error { return d.fn(ctx, host) }

// Func adapts a function into a named Descriptor.
func Func(name string, fn func(ctx context.Context, host Host) error) Descriptor {
	return descriptorFunc{name: name, fn: fn}
}

// Option holds a Descriptor or nothing. The zero Option is None.
type Option struct {
	d Descriptor
}

// None returns an empty Option.
func None() Option { return Option{} }

// Some returns an Option holding d. A nil d, including a typed nil pointer, is None.
func Some(d Descriptor) Option {
	if d == nil {
		return Option{}
	}
	switch v := reflect.ValueOf(d); v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return Option{}
		}
	}

	return Option{d: d}
}

// Present reports whether a descriptor was supplied.
func (o Option) Present() bool { return o.d != nil }

// Descriptor returns the supplied descriptor, or nil.
func (o Option) Descriptor() Descriptor { return o.d }

// Bootstrap runs the registration hook of the supplied descriptor, if any. It must be called
// once, before the dependency registry is frozen.
func Bootstrap(ctx context.Context, lggr logger.Logger, opt Option, host Host) error {
	if !opt.Present() {
		return nil
	}

	d := opt.Descriptor()
	lggr.Infow("Registering extension", "extension", d.Name())
	if err := d.Register(ctx, host); err != nil {
		return fmt.Errorf("extension %s: %w", d.Name(), err)
	}

	return nil
}

package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartcontractkit/operations-bus/extension"
	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/operations/middleware"
)

// Provider adds dependency bindings and operation routes before the registry is frozen.
type Provider func(ctx context.Context, host extension.Host) error

// LoadConfig contains the parameters of New that do not come from the configuration file.
type LoadConfig struct {
	// providers run in order before the extension.
	providers []Provider

	// extension is the optional registration hook. Defaults to extension.None().
	extension extension.Option

	// authorizer, when set, installs the Authorize middleware on every dispatch.
	authorizer middleware.Authorizer

	// reporter stores dispatch reports when bus.report is enabled.
	// Defaults to operations.NewMemoryReporter().
	reporter operations.Reporter

	// registerer receives the bus metrics when bus.metrics is enabled.
	// Defaults to prometheus.DefaultRegisterer.
	registerer prometheus.Registerer

	// tracer starts the dispatch spans when bus.tracing is enabled.
	// Defaults to the tracer of the global otel provider.
	tracer trace.Tracer

	// busOptions are applied after the standard middleware.
	busOptions []operations.BusOption
}

// Configure applies opts to the LoadConfig.
func (c *LoadConfig) Configure(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Option is a functional option of New.
type Option func(*LoadConfig)

// WithProvider appends providers run during bootstrap.
func WithProvider(providers ...Provider) Option {
	return func(c *LoadConfig) {
		c.providers = append(c.providers, providers...)
	}
}

// WithExtension sets the extension registered during bootstrap.
func WithExtension(opt extension.Option) Option {
	return func(c *LoadConfig) {
		c.extension = opt
	}
}

// WithAuthorizer restricts every top level dispatch to the principals a allows.
func WithAuthorizer(a middleware.Authorizer) Option {
	return func(c *LoadConfig) {
		c.authorizer = a
	}
}

// WithReporter sets the store of dispatch reports.
func WithReporter(r operations.Reporter) Option {
	return func(c *LoadConfig) {
		c.reporter = r
	}
}

// WithRegisterer sets the prometheus registerer of the bus metrics.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(c *LoadConfig) {
		c.registerer = r
	}
}

// WithTracer sets the tracer of the dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *LoadConfig) {
		c.tracer = t
	}
}

// WithBusOptions appends bus options, e.g. category middleware.
func WithBusOptions(opts ...operations.BusOption) Option {
	return func(c *LoadConfig) {
		c.busOptions = append(c.busOptions, opts...)
	}
}

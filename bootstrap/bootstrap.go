// Package bootstrap is the composition root of an application built on the operations bus.
//
// New binds the dependencies and routes of the application, runs the optional extension,
// validates the catalog and freezes the registry before the Bus accepts any dispatch.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/smartcontractkit/operations-bus/config"
	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/extension"
	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/operations/middleware"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

const tracerName = "github.com/smartcontractkit/operations-bus"

// Runtime is a bootstrapped application.
type Runtime struct {
	Bus      *operations.Bus
	Registry *dependency.Registry
	Routes   *operations.OperationRegistry
	// Reporter is nil when bus.report is disabled.
	Reporter *operations.RecentReporter
	Config   *config.Config
	// Middleware names the bus-wide middleware, outermost first.
	Middleware []string
}

// New bootstraps a Runtime from cfg:
//
//  1. the dependency registry and the operation catalog are created
//  2. the providers run in order, then the extension, if any
//  3. every route's requirements are checked against the registry, which is then frozen
//  4. the Bus is built with the standard middleware cfg.Bus selects
func New(ctx context.Context, cfg *config.Config, lggr logger.Logger, opts ...Option) (*Runtime, error) {
	lc := &LoadConfig{
		reporter:   operations.NewMemoryReporter(),
		registerer: prometheus.DefaultRegisterer,
	}
	lc.Configure(opts)

	rt := &Runtime{
		Registry: dependency.NewRegistry(),
		Routes:   operations.NewOperationRegistry(),
		Config:   cfg,
	}
	host := extension.Host{Dependencies: rt.Registry, Routes: rt.Routes, Config: cfg}

	for _, p := range lc.providers {
		if err := p(ctx, host); err != nil {
			return nil, fmt.Errorf("provider: %w", err)
		}
	}
	if err := extension.Bootstrap(ctx, lggr, lc.extension, host); err != nil {
		return nil, err
	}
	if err := rt.Routes.Validate(rt.Registry); err != nil {
		return nil, fmt.Errorf("invalid operation catalog: %w", err)
	}
	rt.Registry.Freeze()

	if cfg.Bus.Report {
		rt.Reporter = operations.NewRecentMemoryReporter(lc.reporter)
	}
	mws, err := standardMiddleware(cfg.Bus, lc, rt.Reporter, lggr)
	if err != nil {
		return nil, err
	}

	busOpts := append([]operations.BusOption{operations.WithBusMiddleware(mws...)}, lc.busOptions...)
	rt.Bus = operations.NewBus(lggr, rt.Registry, busOpts...)
	rt.Middleware = middlewareNames(mws)

	lggr.Infow("Operations bus ready",
		"operations", len(rt.Routes.Definitions()),
		"dependencies", len(rt.Registry.Requirements()),
		"middleware", rt.Middleware,
	)

	return rt, nil
}

// standardMiddleware builds the bus-wide middleware selected by cfg, outermost first:
// logging, tracing, metrics, report, authorize, rate limit, retry, timeout.
// Timeout is inside retry so every attempt gets its own deadline.
func standardMiddleware(
	cfg config.BusConfig, lc *LoadConfig, reporter operations.Reporter, lggr logger.Logger,
) ([]operations.Middleware, error) {
	mws := []operations.Middleware{middleware.Logging(lggr)}

	if cfg.Tracing {
		tracer := lc.tracer
		if tracer == nil {
			tracer = otel.Tracer(tracerName)
		}
		mws = append(mws, middleware.Tracing(tracer))
	}
	if cfg.Metrics {
		m, err := middleware.Metrics(lc.registerer)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		mws = append(mws, m)
	}
	if reporter != nil {
		mws = append(mws, middleware.Report(reporter, lggr))
	}
	if lc.authorizer != nil {
		mws = append(mws, middleware.Authorize(lc.authorizer))
	}
	if cfg.RateLimit.RPS > 0 {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	if cfg.Retry.MaxAttempts > 1 {
		mws = append(mws, middleware.Retry(middleware.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
		}, lggr))
	}
	if cfg.Timeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.Timeout))
	}

	return mws, nil
}

func middlewareNames(mws []operations.Middleware) []string {
	names := make([]string, 0, len(mws))
	for _, mw := range mws {
		names = append(names, mw.Name())
	}

	return names
}

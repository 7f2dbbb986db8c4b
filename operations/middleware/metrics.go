package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartcontractkit/operations-bus/operations"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

type metrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// Metrics counts dispatches by operation, category and outcome and observes their duration.
// The collectors are registered with reg; collectors already registered by an earlier call
// are reused.
func Metrics(reg prometheus.Registerer) (operations.Middleware, error) {
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opbus",
		Name:      "dispatches_total",
		Help:      "Number of operation dispatches by outcome.",
	}, []string{"operation", "category", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "opbus",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of operation executions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "category"})

	var err error
	if dispatches, err = register(reg, dispatches); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}

	return &metrics{dispatches: dispatches, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}

		return c, err
	}

	return c, nil
}

func (m *metrics) Name() string { return "metrics" }

func (m *metrics) Handle(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
	start := time.Now()
	res, err := next(ctx)

	category := string(inv.Def.Category)
	m.duration.WithLabelValues(inv.Def.ID, category).Observe(time.Since(start).Seconds())
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	m.dispatches.WithLabelValues(inv.Def.ID, category, outcome).Inc()

	return res, err
}

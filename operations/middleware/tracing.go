package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartcontractkit/operations-bus/operations"
)

// Tracing starts one span per dispatch. Nested dispatches become child spans because the
// span travels in the context handed to the handler.
func Tracing(tracer trace.Tracer) operations.Middleware {
	return operations.MiddlewareFunc("tracing", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		ctx, span := tracer.Start(ctx, "operation "+inv.Def.ID,
			trace.WithAttributes(
				attribute.String("operation.id", inv.Def.ID),
				attribute.String("operation.version", versionOf(inv.Def)),
				attribute.String("operation.category", string(inv.Def.Category)),
				attribute.String("operation.dispatch_id", inv.DispatchID),
			),
		)
		defer span.End()

		res, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return res, err
	})
}

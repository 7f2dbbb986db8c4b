package middleware

import (
	"context"
	"time"

	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// Logging logs the start, the end and the failure of every dispatch it wraps.
func Logging(lggr logger.Logger) operations.Middleware {
	return operations.MiddlewareFunc("logging", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		l := lggr.With(
			"id", inv.Def.ID,
			"version", versionOf(inv.Def),
			"category", string(inv.Def.Category),
			"dispatch_id", inv.DispatchID,
		)
		if inv.ParentID != "" {
			l = l.With("parent_id", inv.ParentID)
		}

		l.Infow("Executing operation", "description", inv.Def.Description)
		start := time.Now()

		res, err := next(ctx)
		if err != nil {
			l.Errorw("Operation failed", "duration", time.Since(start), "error", err)
			return res, err
		}
		l.Infow("Operation completed", "duration", time.Since(start))

		return res, nil
	})
}

func versionOf(def operations.Definition) string {
	if def.Version == nil {
		return ""
	}

	return def.Version.String()
}

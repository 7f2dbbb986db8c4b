package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// children collects the report IDs of the dispatches nested in one dispatch.
type children struct {
	mu  sync.Mutex
	ids []string
}

func (c *children) add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids = append(c.ids, id)
}

func (c *children) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.ids...)
}

type childrenCtxKey struct{}

// Report records an operations.Report for every dispatch it wraps. The report ID is the
// dispatch ID, and reports of nested dispatches are linked to their parent's report through
// ChildOperationReports. A dispatch answered from the invocation scope is reported with Memoized
// set. Failing to store a report is logged and does not fail the dispatch.
func Report(reporter operations.Reporter, lggr logger.Logger) operations.Middleware {
	return operations.MiddlewareFunc("report", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		parent, _ := ctx.Value(childrenCtxKey{}).(*children)
		own := &children{}
		start := time.Now()

		res, err := next(context.WithValue(ctx, childrenCtxKey{}, own))

		report := operations.NewReport(inv.DispatchID, inv.Def, inv.Input, res, err, time.Since(start), own.list()...)
		report.Memoized = operations.MemoHit(ctx)
		if addErr := reporter.AddReport(report); addErr != nil {
			lggr.Warnw("Failed to store operation report",
				"id", inv.Def.ID, "dispatch_id", inv.DispatchID, "error", addErr)
		} else if parent != nil {
			parent.add(inv.DispatchID)
		}

		return res, err
	})
}

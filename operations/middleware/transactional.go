package middleware

import (
	"context"
	"fmt"

	"github.com/smartcontractkit/operations-bus/operations"
)

// Tx is an open transaction. *sql.Tx satisfies it.
type Tx interface {
	Commit() error
	Rollback() error
}

// Transactor begins transactions. BeginTx returns a context that carries the transaction so the
// resources used by the handler join it. When ctx already carries a transaction of the same
// Transactor, implementations join it and return a Tx whose Commit and Rollback do nothing.
type Transactor interface {
	BeginTx(ctx context.Context) (context.Context, Tx, error)
}

// Transactional brackets the rest of the chain in a transaction. It commits on success and
// rolls back on failure; the failure is returned unchanged unless the rollback fails too.
func Transactional(t Transactor) operations.Middleware {
	return operations.MiddlewareFunc("transactional", func(ctx context.Context, inv operations.Invocation, next operations.Next) (any, error) {
		txCtx, tx, err := t.BeginTx(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}

		res, err := next(txCtx)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return nil, fmt.Errorf("%w (rollback failed: %w)", err, rbErr)
			}

			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}

		return res, nil
	})
}

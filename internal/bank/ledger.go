// Package bank is the example domain of the operations bus: a ledger of accounts and the
// commands, queries and actions that move money between them.
package bank

import (
	"context"
	"errors"

	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/operations/middleware"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAccountExists     = errors.New("account already exists")
)

// Ledger stores account balances. Amounts are in minor units.
//
// Every Ledger is also a middleware.Transactor: calls made with a context returned by BeginTx
// are part of that transaction.
type Ledger interface {
	middleware.Transactor

	// Open creates account with an opening balance.
	Open(ctx context.Context, account string, balance int64) error
	// Balance returns the balance of account.
	Balance(ctx context.Context, account string) (int64, error)
	// Credit adds amount to account and returns the new balance.
	Credit(ctx context.Context, account string, amount int64) (int64, error)
	// Debit removes amount from account and returns the new balance. It fails with
	// ErrInsufficientFunds rather than going negative.
	Debit(ctx context.Context, account string, amount int64) (int64, error)
	// Close releases the resources of the ledger.
	Close() error
}

// Tx is an open ledger transaction.
type Tx = middleware.Tx

// LedgerKey is the requirement under which the ledger is bound.
var LedgerKey = dependency.NewKey[Ledger]("ledger")

// LedgerDeps is the dependency set of every bank operation.
type LedgerDeps struct {
	Ledger Ledger `dep:"ledger"`
}

func checkAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	return nil
}

// noopTx is returned when BeginTx joins a transaction that is already open.
type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

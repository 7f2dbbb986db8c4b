package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartcontractkit/operations-bus/config"
	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/extension"
	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// OpenLedger opens the ledger selected by cfg and opens its configured accounts. Accounts
// that already exist in a persistent ledger keep their balance.
func OpenLedger(ctx context.Context, lggr logger.Logger, cfg config.LedgerConfig) (Ledger, error) {
	if cfg.Driver == "" || cfg.Driver == config.DriverMemory {
		return NewMemoryLedger(cfg.Accounts), nil
	}

	l, err := OpenSQL(ctx, lggr, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	for _, account := range Accounts(cfg.Accounts) {
		if err := l.Open(ctx, account, cfg.Accounts[account]); err != nil && !errors.Is(err, ErrAccountExists) {
			_ = l.Close()
			return nil, fmt.Errorf("open account %s: %w", account, err)
		}
	}

	return l, nil
}

// Provider binds ledger under LedgerKey and registers the bank operations.
func Provider(ledger Ledger) func(ctx context.Context, host extension.Host) error {
	return func(_ context.Context, host extension.Host) error {
		if err := dependency.Provide(host.Dependencies, LedgerKey, ledger); err != nil {
			return err
		}

		return operations.RegisterOperation(host.Routes, NewOperations(ledger).Routes()...)
	}
}

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/smartcontractkit/operations-bus/bootstrap"
	"github.com/smartcontractkit/operations-bus/config"
	"github.com/smartcontractkit/operations-bus/internal/bank"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// ConfigLoaderFunc loads the configuration from the file at path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// Session is a bootstrapped runtime and the resources a command must release when it ends.
type Session struct {
	Runtime *bootstrap.Runtime
	Close   func() error
}

// SessionLoaderFunc bootstraps the runtime a command dispatches on.
type SessionLoaderFunc func(ctx context.Context, cfg *config.Config, lggr logger.Logger) (*Session, error)

// ReportWriterFunc writes data to the report file at path.
type ReportWriterFunc func(path string, data []byte) error

// defaultSessionLoader opens the configured ledger and bootstraps the bank operations. Top
// level dispatches are restricted by bank.OwnerAuthorizer.
func defaultSessionLoader(ctx context.Context, cfg *config.Config, lggr logger.Logger) (*Session, error) {
	ledger, err := bank.OpenLedger(ctx, lggr, cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	rt, err := bootstrap.New(ctx, cfg, lggr,
		bootstrap.WithProvider(bank.Provider(ledger)),
		bootstrap.WithAuthorizer(bank.OwnerAuthorizer),
	)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	return &Session{Runtime: rt, Close: ledger.Close}, nil
}

func defaultReportWriter(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values use the production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// SessionLoader bootstraps the runtime.
	// Default: the bank operations on the configured ledger
	SessionLoader SessionLoaderFunc

	// ReportWriter writes the reports of a command.
	// Default: os.WriteFile
	ReportWriter ReportWriterFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.SessionLoader == nil {
		d.SessionLoader = defaultSessionLoader
	}
	if d.ReportWriter == nil {
		d.ReportWriter = defaultReportWriter
	}
}

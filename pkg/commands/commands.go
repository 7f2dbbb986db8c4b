// Package commands provides the CLI of the operations bus.
//
// There are two ways to build it:
//
// 1. Via the Commands factory:
//
//	cmds := commands.New(lggr)
//	root := cmds.Root()
//
// 2. Via NewCommand, for injecting dependencies in tests:
//
//	root := commands.NewCommand(commands.Config{
//	    Logger: lggr,
//	    Deps:   &commands.Deps{SessionLoader: mySessionLoader},
//	})
//
// Every command that dispatches operations bootstraps its own runtime and runs in one
// invocation context, so reads are memoized for the duration of the command only.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/operations-bus/bootstrap"
	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/operations/middleware"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

// Commands provides a factory for the CLI with a shared logger.
type Commands struct {
	lggr logger.Logger
}

// New creates a new Commands factory with the given logger. A nil logger is built from the
// log level of the loaded configuration.
func New(lggr logger.Logger) *Commands {
	return &Commands{lggr: lggr}
}

// Root creates the root command.
func (c *Commands) Root() *cobra.Command {
	return NewCommand(Config{Logger: c.lggr})
}

// Config configures the root command.
type Config struct {
	// Logger is optional, see New.
	Logger logger.Logger
	// Deps is optional, nil fields use the production defaults.
	Deps *Deps
}

func (c *Config) deps() {
	if c.Deps == nil {
		c.Deps = &Deps{}
	}
	c.Deps.applyDefaults()
}

// NewCommand creates the root command with all subcommands.
func NewCommand(cfg Config) *cobra.Command {
	cfg.deps()

	cmd := &cobra.Command{
		Use:   "opbus",
		Short: "Operations bus",
		Long: longDesc(`
Dispatches the bank operations through the operations bus.

The ledger, the standard middleware and the logger are configured by the file given with
--config, or by OPBUS_* environment variables when the file does not exist.`),
		SilenceUsage: true,
	}

	configFlag(cmd)
	principalFlag(cmd)
	reportOutFlag(cmd)

	cmd.AddCommand(
		newOpsCmd(cfg),
		newBalanceCmd(cfg),
		newWithdrawCmd(cfg),
		newDepositCmd(cfg),
		newTransferCmd(cfg),
		newStatementCmd(cfg),
		newReportsCmd(),
	)

	return cmd
}

// dispatchFunc runs the work of a command inside its invocation context.
type dispatchFunc func(ctx context.Context, rt *bootstrap.Runtime) (any, error)

// run bootstraps a runtime, runs fn in a fresh invocation context as the principal of the
// command, writes the reports if asked to and prints a non-nil result as YAML.
func run(cmd *cobra.Command, cfg Config, fn dispatchFunc) error {
	path := mustString(cmd.Flags().GetString("config"))
	conf, err := cfg.Deps.ConfigLoader(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lggr := cfg.Logger
	if lggr == nil {
		if lggr, err = logger.New(logger.Config{Level: conf.Log.Level}); err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = lggr.Sync() }()
	}

	session, err := cfg.Deps.SessionLoader(cmd.Context(), conf, lggr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			lggr.Warnw("Failed to close session", "error", cerr)
		}
	}()

	ctx := middleware.WithPrincipal(cmd.Context(), mustString(cmd.Flags().GetString("principal")))
	var out any
	err = operations.WithScope(ctx, func(ctx context.Context) error {
		var ferr error
		out, ferr = fn(ctx, session.Runtime)

		return ferr
	})
	if rerr := writeReports(cmd, cfg, session.Runtime); rerr != nil {
		return errors.Join(err, rerr)
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	return printYAML(cmd.OutOrStdout(), out)
}

func writeReports(cmd *cobra.Command, cfg Config, rt *bootstrap.Runtime) error {
	path := mustString(cmd.Flags().GetString("report-out"))
	if path == "" {
		return nil
	}
	if rt.Reporter == nil {
		return errors.New("--report-out requires bus.report to be enabled")
	}

	data, err := yaml.Marshal(rt.Reporter.GetRecentReports())
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	if err := cfg.Deps.ReportWriter(path, data); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}

	return nil
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}

	return enc.Close()
}

package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smartcontractkit/operations-bus/bootstrap"
	"github.com/smartcontractkit/operations-bus/internal/bank"
)

func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return amount, nil
}

func newBalanceCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, rt *bootstrap.Runtime) (any, error) {
				return dispatchRoute(ctx, rt, "bank-balance", bank.AccountInput{Account: args[0]})
			})
		},
	}
}

func newWithdrawCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <account> <amount>",
		Short: "Withdraw an amount from an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			return run(cmd, cfg, func(ctx context.Context, rt *bootstrap.Runtime) (any, error) {
				return dispatchRoute(ctx, rt, "bank-withdraw", bank.AmountInput{Account: args[0], Amount: amount})
			})
		},
	}
}

func newDepositCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Deposit an amount into an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			return run(cmd, cfg, func(ctx context.Context, rt *bootstrap.Runtime) (any, error) {
				return dispatchRoute(ctx, rt, "bank-deposit", bank.AmountInput{Account: args[0], Amount: amount})
			})
		},
	}
}

func newTransferCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <from> <to> <amount>",
		Short: "Move an amount between two accounts",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			return run(cmd, cfg, func(ctx context.Context, rt *bootstrap.Runtime) (any, error) {
				return dispatchRoute(ctx, rt, "bank-transfer", bank.TransferInput{From: args[0], To: args[1], Amount: amount})
			})
		},
	}
}

func newStatementCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "statement <account>...",
		Short: "Show the balances of several accounts and their total",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, rt *bootstrap.Runtime) (any, error) {
				return dispatchRoute(ctx, rt, "bank-statement", bank.StatementInput{Accounts: args})
			})
		},
	}
}

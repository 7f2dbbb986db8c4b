package bank

import (
	"errors"
	"slices"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/operations/middleware"
)

// ErrSameAccount is returned by a transfer whose source and destination are the same account.
var ErrSameAccount = errors.New("cannot transfer to the same account")

// AccountInput names one account.
type AccountInput struct {
	Account string `json:"account" yaml:"account"`
}

func (i AccountInput) Owner() string { return i.Account }

// AmountInput moves Amount into or out of Account.
type AmountInput struct {
	Account string `json:"account" yaml:"account"`
	Amount  int64  `json:"amount" yaml:"amount"`
}

func (i AmountInput) Owner() string { return i.Account }

// TransferInput moves Amount from one account to another.
type TransferInput struct {
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	Amount int64  `json:"amount" yaml:"amount"`
}

func (i TransferInput) Owner() string { return i.From }

// TransferResult holds the balances after a transfer.
type TransferResult struct {
	From int64 `json:"from" yaml:"from"`
	To   int64 `json:"to" yaml:"to"`
}

// StatementInput lists the accounts of a statement.
type StatementInput struct {
	Accounts []string `json:"accounts" yaml:"accounts"`
}

// Statement holds the balances of several accounts and their sum.
type Statement struct {
	Balances map[string]int64 `json:"balances" yaml:"balances"`
	Total    int64            `json:"total" yaml:"total"`
}

// Operations is the set of bank operations.
type Operations struct {
	Withdraw   *operations.Operation[AmountInput, int64, LedgerDeps]
	Deposit    *operations.Operation[AmountInput, int64, LedgerDeps]
	GetBalance *operations.Operation[AccountInput, int64, LedgerDeps]
	Transfer   *operations.Operation[TransferInput, TransferResult, LedgerDeps]
	Statement  *operations.Operation[StatementInput, Statement, LedgerDeps]
}

// NewOperations builds the bank operations. Transfers run in transactions of tx, normally the
// ledger itself.
func NewOperations(tx middleware.Transactor) *Operations {
	o := &Operations{}

	o.Withdraw = operations.NewCommand("bank-withdraw", semver.MustParse("1.0.0"),
		"Withdraws an amount from an account",
		func(b operations.Bundle, deps LedgerDeps, in AmountInput) (int64, error) {
			return deps.Ledger.Debit(b.GetContext(), in.Account, in.Amount)
		})

	o.Deposit = operations.NewCommand("bank-deposit", semver.MustParse("1.0.0"),
		"Deposits an amount into an account",
		func(b operations.Bundle, deps LedgerDeps, in AmountInput) (int64, error) {
			return deps.Ledger.Credit(b.GetContext(), in.Account, in.Amount)
		})

	// Balances are memoized for the invocation context: a context that changes a balance and
	// reads it again must not use this query for the second read.
	o.GetBalance = operations.NewQuery("bank-balance", semver.MustParse("1.0.0"),
		"Returns the balance of an account",
		func(b operations.Bundle, deps LedgerDeps, in AccountInput) (int64, error) {
			return deps.Ledger.Balance(b.GetContext(), in.Account)
		}, operations.WithMemoization())

	o.Transfer = operations.NewAction("bank-transfer", semver.MustParse("1.0.0"),
		"Moves an amount between two accounts in one transaction",
		func(b operations.Bundle, _ LedgerDeps, in TransferInput) (TransferResult, error) {
			if in.From == in.To {
				return TransferResult{}, ErrSameAccount
			}
			ctx := b.GetContext()

			from, err := operations.Dispatch(ctx, b.Bus, o.Withdraw.New(AmountInput{Account: in.From, Amount: in.Amount}))
			if err != nil {
				return TransferResult{}, err
			}
			to, err := operations.Dispatch(ctx, b.Bus, o.Deposit.New(AmountInput{Account: in.To, Amount: in.Amount}))
			if err != nil {
				return TransferResult{}, err
			}

			return TransferResult{From: from, To: to}, nil
		}, operations.WithMiddleware(middleware.Transactional(tx)))

	// The branches share the invocation scope on purpose: an account listed twice is read once.
	o.Statement = operations.NewAction("bank-statement", semver.MustParse("1.0.0"),
		"Reads the balances of several accounts concurrently",
		func(b operations.Bundle, _ LedgerDeps, in StatementInput) (Statement, error) {
			balances := make([]int64, len(in.Accounts))
			g, ctx := errgroup.WithContext(b.GetContext())
			for i, account := range in.Accounts {
				g.Go(func() error {
					balance, err := operations.Dispatch(ctx, b.Bus, o.GetBalance.New(AccountInput{Account: account}))
					balances[i] = balance

					return err
				})
			}
			if err := g.Wait(); err != nil {
				return Statement{}, err
			}

			st := Statement{Balances: make(map[string]int64, len(in.Accounts))}
			for i, account := range in.Accounts {
				if _, seen := st.Balances[account]; !seen {
					st.Total += balances[i]
				}
				st.Balances[account] = balances[i]
			}

			return st, nil
		})

	return o
}

// Routes returns every bank operation.
func (o *Operations) Routes() []operations.Route {
	return []operations.Route{o.Withdraw, o.Deposit, o.GetBalance, o.Transfer, o.Statement}
}

// Accounts returns the sorted names of the given opening balances.
func Accounts(balances map[string]int64) []string {
	names := make([]string, 0, len(balances))
	for name := range balances {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

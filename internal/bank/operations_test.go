package bank

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/operations-bus/dependency"
	"github.com/smartcontractkit/operations-bus/extension"
	"github.com/smartcontractkit/operations-bus/operations"
	"github.com/smartcontractkit/operations-bus/operations/middleware"
	"github.com/smartcontractkit/operations-bus/operations/optest"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

func newBankBus(t *testing.T, l Ledger, opts ...operations.BusOption) *operations.Bus {
	t.Helper()

	reg := dependency.NewRegistry()
	require.NoError(t, dependency.Provide(reg, LedgerKey, l))

	return optest.NewBusWith(t, reg, opts...)
}

func balanceOf(t *testing.T, l Ledger, account string) int64 {
	t.Helper()

	got, err := l.Balance(t.Context(), account)
	require.NoError(t, err)

	return got
}

func Test_Withdraw(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger(map[string]int64{"alice": 100})
	ops := NewOperations(l)

	got, err := operations.Dispatch(t.Context(), newBankBus(t, l), ops.Withdraw.New(AmountInput{Account: "alice", Amount: 50}))
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
	assert.Equal(t, int64(50), balanceOf(t, l, "alice"))
}

func Test_Withdraw_UnresolvableLedger(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger(map[string]int64{"alice": 100})
	ops := NewOperations(l)
	bus := optest.NewBus(t)

	_, err := operations.Dispatch(t.Context(), bus, ops.Withdraw.New(AmountInput{Account: "alice", Amount: 50}))
	require.Error(t, err)

	kind, ok := operations.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, operations.KindResolution, kind)
	var rerr *dependency.ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, []dependency.Requirement{LedgerKey.Requirement()}, rerr.Missing())

	assert.Equal(t, int64(100), balanceOf(t, l, "alice"))
}

func Test_Withdraw_LoggingObservesFailure(t *testing.T) {
	t.Parallel()

	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	l := NewMemoryLedger(map[string]int64{"alice": 10})
	ops := NewOperations(l)
	bus := newBankBus(t, l, operations.WithBusMiddleware(middleware.Logging(lggr)))

	_, err := operations.Dispatch(t.Context(), bus, ops.Withdraw.New(AmountInput{Account: "alice", Amount: 50}))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	failed := logs.FilterMessage("Operation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "bank-withdraw", failed[0].ContextMap()["id"])
	assert.Equal(t, err.Error(), failed[0].ContextMap()["error"])
}

func Test_Deposit(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger(map[string]int64{"alice": 100})
	ops := NewOperations(l)

	got, err := operations.Dispatch(t.Context(), newBankBus(t, l), ops.Deposit.New(AmountInput{Account: "alice", Amount: 5}))
	require.NoError(t, err)
	assert.Equal(t, int64(105), got)
}

func Test_Transfer(t *testing.T) {
	t.Parallel()

	for name, factory := range ledgerFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			l := factory(t)
			require.NoError(t, l.Open(t.Context(), "alice", 100))
			require.NoError(t, l.Open(t.Context(), "bob", 10))
			ops := NewOperations(l)
			bus := newBankBus(t, l)

			got, err := operations.Dispatch(t.Context(), bus, ops.Transfer.New(TransferInput{From: "alice", To: "bob", Amount: 30}))
			require.NoError(t, err)
			assert.Equal(t, TransferResult{From: 70, To: 40}, got)

			// the deposit fails, so the withdrawal is rolled back
			_, err = operations.Dispatch(t.Context(), bus, ops.Transfer.New(TransferInput{From: "alice", To: "nobody", Amount: 30}))
			require.ErrorIs(t, err, ErrUnknownAccount)
			def, ok := operations.OperationOf(err)
			require.True(t, ok)
			assert.Equal(t, "bank-deposit", def.ID)
			assert.Equal(t, int64(70), balanceOf(t, l, "alice"))

			_, err = operations.Dispatch(t.Context(), bus, ops.Transfer.New(TransferInput{From: "alice", To: "alice", Amount: 1}))
			require.ErrorIs(t, err, ErrSameAccount)
		})
	}
}

func Test_Transfer_Reports(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger(map[string]int64{"alice": 100, "bob": 0})
	ops := NewOperations(l)
	reporter := operations.NewMemoryReporter()
	bus := newBankBus(t, l, operations.WithBusMiddleware(middleware.Report(reporter, logger.Test(t))))

	_, err := operations.Dispatch(t.Context(), bus, ops.Transfer.New(TransferInput{From: "alice", To: "bob", Amount: 1}))
	require.NoError(t, err)

	reports, err := reporter.GetReports()
	require.NoError(t, err)
	require.Len(t, reports, 3)
	root := reports[2]
	assert.Equal(t, "bank-transfer", root.Def.ID)

	all, err := reporter.GetExecutionReports(root.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "bank-withdraw", all[0].Def.ID)
	assert.Equal(t, "bank-deposit", all[1].Def.ID)
}

// countingLedger counts balance reads.
type countingLedger struct {
	Ledger

	mu    sync.Mutex
	reads map[string]int
}

func (c *countingLedger) Balance(ctx context.Context, account string) (int64, error) {
	c.mu.Lock()
	c.reads[account]++
	c.mu.Unlock()

	return c.Ledger.Balance(ctx, account)
}

func Test_GetBalance_Memoized(t *testing.T) {
	t.Parallel()

	l := &countingLedger{Ledger: NewMemoryLedger(map[string]int64{"alice": 100}), reads: map[string]int{}}
	ops := NewOperations(l)
	bus := newBankBus(t, l)

	err := operations.WithScope(t.Context(), func(ctx context.Context) error {
		for range 3 {
			got, err := operations.Dispatch(ctx, bus, ops.GetBalance.New(AccountInput{Account: "alice"}))
			require.NoError(t, err)
			assert.Equal(t, int64(100), got)
		}

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.reads["alice"])

	// a new invocation context reads again
	require.NoError(t, operations.WithScope(t.Context(), func(ctx context.Context) error {
		_, err := operations.Dispatch(ctx, bus, ops.GetBalance.New(AccountInput{Account: "alice"}))
		return err
	}))
	assert.Equal(t, 2, l.reads["alice"])
}

func Test_Statement(t *testing.T) {
	t.Parallel()

	l := &countingLedger{
		Ledger: NewMemoryLedger(map[string]int64{"alice": 100, "bob": 20, "carol": 3}),
		reads:  map[string]int{},
	}
	ops := NewOperations(l)
	bus := newBankBus(t, l)

	var got Statement
	err := operations.WithScope(t.Context(), func(ctx context.Context) error {
		var err error
		got, err = operations.Dispatch(ctx, bus, ops.Statement.New(StatementInput{Accounts: []string{"alice", "bob", "carol"}}))
		if err != nil {
			return err
		}

		// balances read by the statement are memoized for the rest of the context
		_, err = operations.Dispatch(ctx, bus, ops.GetBalance.New(AccountInput{Account: "bob"}))

		return err
	})
	require.NoError(t, err)

	assert.Equal(t, Statement{
		Balances: map[string]int64{"alice": 100, "bob": 20, "carol": 3},
		Total:    123,
	}, got)
	assert.Equal(t, map[string]int{"alice": 1, "bob": 1, "carol": 1}, l.reads)

	_, err = operations.Dispatch(t.Context(), bus, ops.Statement.New(StatementInput{Accounts: []string{"alice", "nobody"}}))
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func Test_Provider(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger(map[string]int64{"alice": 1})
	host := extension.Host{
		Dependencies: dependency.NewRegistry(),
		Routes:       operations.NewOperationRegistry(),
	}

	require.NoError(t, Provider(l)(t.Context(), host))
	require.NoError(t, host.Routes.Validate(host.Dependencies))

	got, err := dependency.Resolve(host.Dependencies, LedgerKey)
	require.NoError(t, err)
	assert.Same(t, l, got)

	ids := make([]string, 0)
	for _, def := range host.Routes.Definitions() {
		ids = append(ids, def.ID)
	}
	assert.Equal(t, []string{"bank-balance", "bank-deposit", "bank-statement", "bank-transfer", "bank-withdraw"}, ids)

	// a second registration clashes
	require.Error(t, Provider(l)(t.Context(), host))
}

func Test_OwnerAuthorizer(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger(map[string]int64{"alice": 100, "bob": 0})
	ops := NewOperations(l)
	bus := newBankBus(t, l, operations.WithBusMiddleware(middleware.Authorize(OwnerAuthorizer)))

	tests := []struct {
		name      string
		principal string
		input     TransferInput
		wantErr   error
	}{
		{name: "owner", principal: "alice", input: TransferInput{From: "alice", To: "bob", Amount: 1}},
		{name: "admin", principal: Admin, input: TransferInput{From: "alice", To: "bob", Amount: 1}},
		{name: "stranger", principal: "bob", input: TransferInput{From: "alice", To: "bob", Amount: 1}, wantErr: middleware.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := middleware.WithPrincipal(t.Context(), tt.principal)
			_, err := operations.Dispatch(ctx, bus, ops.Transfer.New(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	assert.Equal(t, int64(98), balanceOf(t, l, "alice"))
}

func Test_OwnerAuthorizer_MemoizedBalance(t *testing.T) {
	t.Parallel()

	l := &countingLedger{Ledger: NewMemoryLedger(map[string]int64{"alice": 100, "bob": 0}), reads: map[string]int{}}
	ops := NewOperations(l)
	bus := newBankBus(t, l, operations.WithBusMiddleware(middleware.Authorize(OwnerAuthorizer)))

	err := operations.WithScope(t.Context(), func(ctx context.Context) error {
		got, err := operations.Dispatch(middleware.WithPrincipal(ctx, "alice"), bus, ops.GetBalance.New(AccountInput{Account: "alice"}))
		require.NoError(t, err)
		assert.Equal(t, int64(100), got)

		got, err = operations.Dispatch(middleware.WithPrincipal(ctx, "bob"), bus, ops.GetBalance.New(AccountInput{Account: "alice"}))
		require.ErrorIs(t, err, middleware.ErrUnauthorized)
		assert.Zero(t, got)

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.reads["alice"])
}

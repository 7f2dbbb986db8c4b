package bank

import (
	"context"
	"fmt"
	"sync"
)

var _ Ledger = (*MemoryLedger)(nil)

// MemoryLedger is a Ledger held in memory. It is safe for concurrent use.
//
// Transactions stage their changes privately and only publish them on commit. A commit re-checks
// every staged change against the balances committed since, so it fails instead of overdrawing.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewMemoryLedger creates a ledger with the given opening balances.
func NewMemoryLedger(accounts map[string]int64) *MemoryLedger {
	balances := make(map[string]int64, len(accounts))
	for account, balance := range accounts {
		balances[account] = balance
	}

	return &MemoryLedger{balances: balances}
}

type memTxCtxKey struct{}

// memTx locks after its ledger, never before.
type memTx struct {
	ledger *MemoryLedger

	mu     sync.Mutex
	opened map[string]int64
	deltas map[string]int64
	done   bool
}

func newMemTx(l *MemoryLedger) *memTx {
	return &memTx{ledger: l, opened: map[string]int64{}, deltas: map[string]int64{}}
}

// balance is the account as seen from inside the transaction. Both locks must be held.
func (t *memTx) balance(account string) (int64, bool) {
	if balance, ok := t.opened[account]; ok {
		return balance, true
	}
	balance, ok := t.ledger.balances[account]

	return balance + t.deltas[account], ok
}

func (t *memTx) Commit() error {
	l := t.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return fmt.Errorf("memory ledger: transaction already finished")
	}
	t.done = true

	for account := range t.opened {
		if _, ok := l.balances[account]; ok {
			return fmt.Errorf("%w: %s", ErrAccountExists, account)
		}
	}
	for account, delta := range t.deltas {
		balance := l.balances[account]
		if balance+delta < 0 {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, account, balance, -delta)
		}
	}

	for account, balance := range t.opened {
		l.balances[account] = balance
	}
	for account, delta := range t.deltas {
		l.balances[account] += delta
	}

	return nil
}

func (t *memTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return fmt.Errorf("memory ledger: transaction already finished")
	}
	t.done = true
	t.opened, t.deltas = nil, nil

	return nil
}

// BeginTx starts a transaction, or joins the one ctx already carries.
func (m *MemoryLedger) BeginTx(ctx context.Context) (context.Context, Tx, error) {
	if tx := m.txFrom(ctx); tx != nil {
		return ctx, noopTx{}, nil
	}
	tx := newMemTx(m)

	return context.WithValue(ctx, memTxCtxKey{}, tx), tx, nil
}

func (m *MemoryLedger) txFrom(ctx context.Context) *memTx {
	if tx, ok := ctx.Value(memTxCtxKey{}).(*memTx); ok && tx.ledger == m {
		return tx
	}

	return nil
}

// lock takes the ledger lock and, when ctx carries a live transaction, the transaction lock.
// The returned func releases both.
func (m *MemoryLedger) lock(ctx context.Context) (*memTx, func(), error) {
	m.mu.Lock()
	tx := m.txFrom(ctx)
	if tx == nil {
		return nil, m.mu.Unlock, nil
	}

	tx.mu.Lock()
	unlock := func() {
		tx.mu.Unlock()
		m.mu.Unlock()
	}
	if tx.done {
		unlock()
		return nil, nil, fmt.Errorf("memory ledger: transaction already finished")
	}

	return tx, unlock, nil
}

// Open implements Ledger.
func (m *MemoryLedger) Open(ctx context.Context, account string, balance int64) error {
	if balance < 0 {
		return ErrInvalidAmount
	}

	tx, unlock, err := m.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if tx == nil {
		if _, ok := m.balances[account]; ok {
			return fmt.Errorf("%w: %s", ErrAccountExists, account)
		}
		m.balances[account] = balance

		return nil
	}

	if _, ok := tx.balance(account); ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, account)
	}
	tx.opened[account] = balance

	return nil
}

// Balance implements Ledger.
func (m *MemoryLedger) Balance(ctx context.Context, account string) (int64, error) {
	tx, unlock, err := m.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var (
		balance int64
		ok      bool
	)
	if tx == nil {
		balance, ok = m.balances[account]
	} else {
		balance, ok = tx.balance(account)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}

	return balance, nil
}

// Credit implements Ledger.
func (m *MemoryLedger) Credit(ctx context.Context, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	return m.apply(ctx, account, amount)
}

// Debit implements Ledger.
func (m *MemoryLedger) Debit(ctx context.Context, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	return m.apply(ctx, account, -amount)
}

func (m *MemoryLedger) apply(ctx context.Context, account string, delta int64) (int64, error) {
	tx, unlock, err := m.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var (
		balance int64
		ok      bool
	)
	if tx == nil {
		balance, ok = m.balances[account]
	} else {
		balance, ok = tx.balance(account)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	if balance+delta < 0 {
		return balance, fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, account, balance, -delta)
	}

	switch {
	case tx == nil:
		m.balances[account] = balance + delta
	case isOpened(tx, account):
		tx.opened[account] = balance + delta
	default:
		tx.deltas[account] += delta
	}

	return balance + delta, nil
}

func isOpened(tx *memTx, account string) bool {
	_, ok := tx.opened[account]
	return ok
}

// Close implements Ledger.
func (m *MemoryLedger) Close() error { return nil }

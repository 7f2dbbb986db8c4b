package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// SQL drivers selectable through ledger.driver.
	_ "github.com/lib/pq"
	_ "github.com/proullon/ramsql/driver"
	_ "modernc.org/sqlite"

	"github.com/smartcontractkit/operations-bus/config"
	"github.com/smartcontractkit/operations-bus/pkg/logger"
)

const schemaAccounts = `CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	balance BIGINT NOT NULL
)`

var _ Ledger = (*SQLLedger)(nil)

// DB is the subset of *sql.DB and *sql.Tx the ledger queries through.
type DB interface {
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
}

var (
	_ DB = (*sql.DB)(nil)
	_ DB = (*sql.Tx)(nil)
)

// SQLLedger is a Ledger backed by a database/sql database. Statements use $n placeholders,
// understood by the postgres, sqlite and ramsql drivers.
type SQLLedger struct {
	db        *sql.DB
	lggr      logger.Logger
	forUpdate string
}

// OpenSQL opens the database of driver at dsn and creates the schema. The driver names of
// the config package are the names the drivers register with database/sql.
func OpenSQL(ctx context.Context, lggr logger.Logger, driver, dsn string) (*SQLLedger, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", driver, err)
	}
	if driver == config.DriverSqlite {
		// every connection of an in-memory sqlite database is a different database
		db.SetMaxOpenConns(1)
	}

	l, err := NewSQLLedger(ctx, lggr, db, driver == config.DriverPostgres)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return l, nil
}

// NewSQLLedger creates the schema in db and returns a ledger using it. Set lockRows when the
// database supports SELECT ... FOR UPDATE.
func NewSQLLedger(ctx context.Context, lggr logger.Logger, db *sql.DB, lockRows bool) (*SQLLedger, error) {
	if _, err := db.ExecContext(ctx, schemaAccounts); err != nil {
		return nil, fmt.Errorf("failed to create accounts schema: %w", err)
	}

	l := &SQLLedger{db: db, lggr: lggr.Named("ledger")}
	if lockRows {
		l.forUpdate = " FOR UPDATE"
	}

	return l, nil
}

type sqlTxCtxKey struct{}

type sqlTx struct {
	ledger *SQLLedger
	tx     *sql.Tx
}

// BeginTx starts a transaction, or joins the one ctx already carries.
func (l *SQLLedger) BeginTx(ctx context.Context) (context.Context, Tx, error) {
	if t, ok := ctx.Value(sqlTxCtxKey{}).(*sqlTx); ok && t.ledger == l {
		return ctx, noopTx{}, nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	return context.WithValue(ctx, sqlTxCtxKey{}, &sqlTx{ledger: l, tx: tx}), tx, nil
}

// conn returns the transaction ctx carries, or the database.
func (l *SQLLedger) conn(ctx context.Context) DB {
	if t, ok := ctx.Value(sqlTxCtxKey{}).(*sqlTx); ok && t.ledger == l {
		return t.tx
	}

	return l.db
}

// withTx runs fn in the transaction of ctx, or in a new one committed when fn succeeds.
func (l *SQLLedger) withTx(ctx context.Context, fn func(ctx context.Context, db DB) error) (err error) {
	txCtx, tx, err := l.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			// rollback before re-panicking
			_ = tx.Rollback()
			panic(r)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	return fn(txCtx, l.conn(txCtx))
}

// Open implements Ledger.
func (l *SQLLedger) Open(ctx context.Context, account string, balance int64) error {
	if balance < 0 {
		return ErrInvalidAmount
	}

	return l.withTx(ctx, func(ctx context.Context, db DB) error {
		if _, err := l.balance(ctx, db, account, ""); err == nil {
			return fmt.Errorf("%w: %s", ErrAccountExists, account)
		} else if !errors.Is(err, ErrUnknownAccount) {
			return err
		}
		l.lggr.Debugw("Opening account", "account", account)
		_, err := db.ExecContext(ctx, `INSERT INTO accounts (id, balance) VALUES ($1, $2)`, account, balance)

		return err
	})
}

// Balance implements Ledger.
func (l *SQLLedger) Balance(ctx context.Context, account string) (int64, error) {
	return l.balance(ctx, l.conn(ctx), account, "")
}

func (l *SQLLedger) balance(ctx context.Context, db DB, account string, suffix string) (int64, error) {
	var balance int64
	err := db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1`+suffix, account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}

	return balance, nil
}

// Credit implements Ledger.
func (l *SQLLedger) Credit(ctx context.Context, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	return l.apply(ctx, account, amount)
}

// Debit implements Ledger.
func (l *SQLLedger) Debit(ctx context.Context, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	return l.apply(ctx, account, -amount)
}

func (l *SQLLedger) apply(ctx context.Context, account string, delta int64) (int64, error) {
	var updated int64
	err := l.withTx(ctx, func(ctx context.Context, db DB) error {
		balance, err := l.balance(ctx, db, account, l.forUpdate)
		if err != nil {
			return err
		}
		if balance+delta < 0 {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, account, balance, -delta)
		}
		updated = balance + delta
		_, err = db.ExecContext(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, updated, account)

		return err
	})
	if err != nil {
		return 0, err
	}

	return updated, nil
}

// Close closes the database.
func (l *SQLLedger) Close() error {
	return l.db.Close()
}

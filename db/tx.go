package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tx
// ─────────────────────────────────────────────────────────────────────────────

// Tx is an open transaction. It has the same statement methods as DB and
// Conn, so repositories take any of them through Querier.
type Tx struct {
	raw *sql.Tx
	s   session
}

// Raw returns the underlying *sql.Tx.
func (t *Tx) Raw() *sql.Tx { return t.raw }

// Exec runs a statement that returns no rows.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.s.exec(ctx, query, args)
}

// Query runs a query. The caller MUST close the rows.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.s.query(ctx, query, args)
}

// QueryRow runs a query expected to return at most one row.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return t.s.queryRow(ctx, query, args)
}

// Prepare creates a statement scoped to the transaction.
func (t *Tx) Prepare(ctx context.Context, query string) (*Stmt, error) {
	return t.s.prepare(ctx, query)
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx — commit on success, rollback on error or panic
// ─────────────────────────────────────────────────────────────────────────────

// TxOptions sets the isolation level and read-only flag of a transaction.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (o TxOptions) toSQL() *sql.TxOptions {
	return &sql.TxOptions{Isolation: o.Isolation, ReadOnly: o.ReadOnly}
}

// ExecTx runs fn in a transaction on a pooled connection. The transaction
// commits when fn returns nil and rolls back when fn returns an error or
// panics; the panic is re-raised after the rollback.
//
//	err := database.ExecTx(ctx, func(tx *db.Tx) error {
//	    _, err := tx.Exec(ctx, "UPDATE passes SET status = $1 WHERE id = $2", "pending", id)
//	    return err
//	})
func (d *DB) ExecTx(ctx context.Context, fn func(*Tx) error, opts ...TxOptions) error {
	ctx, cancel := withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
	defer cancel()
	return runTx(ctx, d.sqldb.BeginTx, d.s, fn, opts...)
}

type beginFunc func(context.Context, *sql.TxOptions) (*sql.Tx, error)

func runTx(ctx context.Context, begin beginFunc, s session, fn func(*Tx) error, opts ...TxOptions) (err error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0].toSQL()
	}

	raw, err := begin(ctx, txOpts)
	if err != nil {
		return s.mapErr(err)
	}
	tx := &Tx{raw: raw, s: s.on(raw)}

	defer func() {
		if p := recover(); p != nil {
			_ = raw.Rollback()
			panic(p)
		}
		if err == nil {
			return
		}
		if rbErr := raw.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("pereval/db: rollback failed (%v) after original error: %w", rbErr, err)
		}
	}()

	if err = fn(tx); err != nil {
		return s.mapErr(err)
	}
	if err = raw.Commit(); err != nil {
		return s.mapErr(err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Querier — the shared interface accepted by repositories
// ─────────────────────────────────────────────────────────────────────────────

// Querier is implemented by *DB, *Conn and *Tx. Repository constructors take
// a Querier so the same code runs on the pool, on a checked-out connection or
// inside a transaction.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Prepare(ctx context.Context, query string) (*Stmt, error)
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Conn)(nil)
	_ Querier = (*Tx)(nil)
)

package db

import (
	"context"
	"database/sql"
	"errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Conn — one checked-out connection, owned by a single operation
// ─────────────────────────────────────────────────────────────────────────────

// Conn is a connection taken from the pool for the lifetime of one
// operation. It is not safe for concurrent use; every operation acquires its
// own. Release gives it back.
type Conn struct {
	raw *sql.Conn
	s   session
}

// Acquire checks a connection out of the pool. Failing to obtain one
// (network, authentication, closed pool) is reported as ErrConnectionFailed
// and is not retried.
func (d *DB) Acquire(ctx context.Context) (*Conn, error) {
	ctx, cancel := withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
	defer cancel()

	raw, err := d.sqldb.Conn(ctx)
	if err != nil {
		return nil, &DBError{Sentinel: ErrConnectionFailed, Cause: err, Message: "acquire"}
	}
	return &Conn{raw: raw, s: d.s.on(raw)}, nil
}

// Release gives the connection back to the pool. Calling it more than once
// is harmless.
func (c *Conn) Release() error {
	if err := c.raw.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

// WithConn acquires a connection, runs fn with it and releases it on every
// exit path, panics included.
//
//	err := database.WithConn(ctx, func(c *db.Conn) error {
//	    return c.ExecTx(ctx, func(tx *db.Tx) error { ... })
//	})
func (d *DB) WithConn(ctx context.Context, fn func(*Conn) error) error {
	c, err := d.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Release() }()
	return fn(c)
}

// Exec runs a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.s.exec(ctx, query, args)
}

// Query runs a query. The rows MUST be closed before the next statement on
// the same Conn.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.s.query(ctx, query, args)
}

// QueryRow runs a query expected to return at most one row.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return c.s.queryRow(ctx, query, args)
}

// Prepare creates a statement bound to this connection.
func (c *Conn) Prepare(ctx context.Context, query string) (*Stmt, error) {
	return c.s.prepare(ctx, query)
}

// ExecTx runs fn in a transaction on this connection. See DB.ExecTx.
func (c *Conn) ExecTx(ctx context.Context, fn func(*Tx) error, opts ...TxOptions) error {
	return runTx(ctx, c.raw.BeginTx, c.s, fn, opts...)
}

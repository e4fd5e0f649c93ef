package db

import (
	"context"
	"database/sql"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// session — statement dispatch shared by DB, Conn and Tx
// ─────────────────────────────────────────────────────────────────────────────

// sqlExecutor is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// session runs statements on one executor, firing hooks around each call and
// translating driver errors through errMap.
type session struct {
	ex     sqlExecutor
	hooks  hookChain
	errMap ErrorMapper
	// timeout bounds Exec when the caller set no deadline. Zero disables it.
	timeout time.Duration
}

// on returns a copy of s bound to ex, without the default timeout.
func (s session) on(ex sqlExecutor) session {
	return session{ex: ex, hooks: s.hooks, errMap: s.errMap}
}

func (s session) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	ctx, cancel := withDefaultTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.hooks.Before(ctx, query, args)
	res, err := s.ex.ExecContext(ctx, query, args...)
	err = s.mapErr(err)
	s.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// query leaves the context untouched: the rows outlive this call.
func (s session) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	start := time.Now()
	s.hooks.Before(ctx, query, args)
	rows, err := s.ex.QueryContext(ctx, query, args...)
	err = s.mapErr(err)
	s.hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

func (s session) queryRow(ctx context.Context, query string, args []any) *Row {
	start := time.Now()
	s.hooks.Before(ctx, query, args)
	raw := s.ex.QueryRowContext(ctx, query, args...)
	s.hooks.After(ctx, query, args, time.Since(start), nil) // err unknown until Scan
	return &Row{raw: raw, errMap: s.errMap}
}

func (s session) prepare(ctx context.Context, query string) (*Stmt, error) {
	st, err := s.ex.PrepareContext(ctx, query)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return &Stmt{stmt: st, query: query, hooks: s.hooks, errMap: s.errMap}, nil
}

func (s session) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return s.errMap.Map(err)
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {} // caller already set a deadline
	}
	return context.WithTimeout(ctx, d)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row — single-row result with mapped errors
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row. Scan reports ErrNotFound when nothing matched.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
}

// Scan copies the matched columns into dest.
func (r *Row) Scan(dest ...any) error {
	if err := r.raw.Scan(dest...); err != nil {
		return r.errMap.Map(err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Stmt — prepared statement
// ─────────────────────────────────────────────────────────────────────────────

// Stmt is a prepared statement bound to the DB, Conn or Tx that prepared it.
// Repositories prepare once per operation when inserting a variable number of
// rows, such as the images of a pass.
type Stmt struct {
	stmt   *sql.Stmt
	query  string
	hooks  hookChain
	errMap ErrorMapper
}

// Exec runs the statement with args.
func (s *Stmt) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	start := time.Now()
	s.hooks.Before(ctx, s.query, args)
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		err = s.errMap.Map(err)
	}
	s.hooks.After(ctx, s.query, args, time.Since(start), err)
	return res, err
}

// QueryRow runs the statement expecting one row, typically from RETURNING.
func (s *Stmt) QueryRow(ctx context.Context, args ...any) *Row {
	start := time.Now()
	s.hooks.Before(ctx, s.query, args)
	raw := s.stmt.QueryRowContext(ctx, args...)
	s.hooks.After(ctx, s.query, args, time.Since(start), nil)
	return &Row{raw: raw, errMap: s.errMap}
}

// Close releases the statement.
func (s *Stmt) Close() error { return s.stmt.Close() }

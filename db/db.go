// Package db is the connection layer of the pass registry. It wraps
// database/sql with per-operation connection scoping, transactions that
// always end in commit or rollback, hook dispatch and a unified error
// taxonomy. All SQL stays explicit and lives in the callers.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// pingTimeout bounds the connectivity check done by Open.
const pingTimeout = 5 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config describes how to open the pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "postgres", "pgx" or "sqlite3".
	DriverName string

	// Pool settings. Zero keeps the database/sql default.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// DefaultTimeout bounds Exec, Ping, Acquire and DB.ExecTx when the
	// context carries no deadline. Zero means no default timeout.
	DefaultTimeout time.Duration

	// SkipPing opens the pool without verifying connectivity. Connection
	// failures then surface on the first Acquire instead of in Open.
	SkipPing bool

	// Hooks run around every statement. Nil entries are skipped.
	Hooks []Hook
}

func (c Config) validate() error {
	if c.DSN == "" {
		return fmt.Errorf("pereval/db: DSN must not be empty")
	}
	if c.DriverName == "" {
		return fmt.Errorf("pereval/db: DriverName must not be empty")
	}
	return nil
}

func (c Config) applyPool(sqldb *sql.DB) {
	if c.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB is the process-wide pool. It is safe for concurrent use.
//
// Single statements may run on DB directly. An operation that issues several
// statements takes its own Conn with Acquire or WithConn, so that all of them
// share one connection that is given back when the operation returns.
type DB struct {
	sqldb *sql.DB
	cfg   Config
	s     session
}

// Open opens the pool described by cfg and, unless cfg.SkipPing is set,
// checks that the store answers. An unreachable store is reported as
// ErrConnectionFailed.
func Open(cfg Config) (*DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pereval/db: open: %w", err)
	}
	cfg.applyPool(sqldb)

	d := &DB{
		sqldb: sqldb,
		cfg:   cfg,
		s: session{
			ex:      sqldb,
			hooks:   newHookChain(cfg.Hooks),
			errMap:  DefaultErrorMapper(),
			timeout: cfg.DefaultTimeout,
		},
	}
	if cfg.SkipPing {
		return d, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("pereval/db: ping: %w", &DBError{Sentinel: ErrConnectionFailed, Cause: err})
	}
	return d, nil
}

// Raw returns the underlying *sql.DB.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// SetErrorMapper replaces the error mapper. Conns and transactions started
// afterwards use the new mapper.
func (d *DB) SetErrorMapper(m ErrorMapper) { d.s.errMap = m }

// Close closes the pool. Operations started afterwards fail with
// ErrConnectionFailed.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping reports ErrConnectionFailed when the store cannot be reached.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
	defer cancel()
	if err := d.sqldb.PingContext(ctx); err != nil {
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// Stats returns pool statistics.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// Dialect reports the SQL dialect of the registered driver the pool was
// opened with, falling back to the raw driver name.
func (d *DB) Dialect() string {
	if drv, err := LookupDriver(d.cfg.DriverName); err == nil {
		return drv.Dialect()
	}
	return d.cfg.DriverName
}

// Exec runs a statement that returns no rows on a pooled connection.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.s.exec(ctx, query, args)
}

// Query runs a query on a pooled connection. The caller MUST close the rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.s.query(ctx, query, args)
}

// QueryRow runs a query expected to return at most one row.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return d.s.queryRow(ctx, query, args)
}

// Prepare creates a pool-wide prepared statement. The caller closes it.
func (d *DB) Prepare(ctx context.Context, query string) (*Stmt, error) {
	return d.s.prepare(ctx, query)
}

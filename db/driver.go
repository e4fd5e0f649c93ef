// Package db — driver.go
// Defines the pluggable driver abstraction layer. Each driver adapter
// implements Driver and registers itself, enabling OpenWithDriver to be
// driver-agnostic while preserving explicit DSN construction per database.
package db

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - providing a driver-specific ErrorMapper
//   - naming the migration dialect its schema is written in
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "pgx", "postgres".
	Name() string

	// Dialect names the SQL dialect ("postgres" or "sqlite3") used to pick
	// the matching schema migrations.
	Dialect() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper
}

// DriverOptions carries the most common connection parameters in a structured,
// driver-agnostic form. DSN() converts them to the driver's native format.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// ConnectTimeout bounds a single connection attempt, in seconds.
	// Zero leaves the driver default (wait indefinitely).
	ConnectTimeout int
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the global registry.
// Panics if a driver with the same name is already registered.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("pereval/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("pereval/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured options,
// removing the need for manual DSN construction.
//
//	database, err := db.OpenWithDriver("postgres", db.DriverOptions{
//	    Host: "localhost", Port: 5432,
//	    User: "postgres", Password: "secret", Database: "fstr",
//	}, db.Config{MaxOpenConns: 25})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("pereval/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn

	d, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	d.SetErrorMapper(ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()))
	return d, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapter (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter and the default for the service.
type PostgresDriver struct{}

func (PostgresDriver) Name() string    { return "postgres" }
func (PostgresDriver) Dialect() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteKV(o.Host), port, quoteKV(o.User), quoteKV(o.Password), quoteKV(o.Database), sslMode,
	)
	if o.ConnectTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", o.ConnectTimeout)
	}
	for _, k := range sortedKeys(o.Extra) {
		dsn += fmt.Sprintf(" %s=%s", k, quoteKV(o.Extra[k]))
	}
	return dsn, nil
}

func (PostgresDriver) ErrorMapper() ErrorMapper { return driverMapper(mapPQError) }

// quoteKV quotes a value for the libpq key=value connection string format.
func quoteKV(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL driver adapter (pgx stdlib)
// ─────────────────────────────────────────────────────────────────────────────

// PgxDriver is the jackc/pgx adapter, registered with database/sql as "pgx".
type PgxDriver struct{}

func (PgxDriver) Name() string    { return "pgx" }
func (PgxDriver) Dialect() string { return "postgres" }

func (PgxDriver) DSN(o DriverOptions) (string, error) {
	u, err := PostgresURL(o)
	if err != nil {
		return "", fmt.Errorf("pgx driver: %w", err)
	}
	return u, nil
}

func (PgxDriver) ErrorMapper() ErrorMapper { return driverMapper(mapPGXError) }

// PostgresURL renders options as a postgres:// URL, the form accepted by pgx
// and by golang-migrate.
func PostgresURL(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if o.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(o.ConnectTimeout))
	}
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", o.Host, port),
		Path:     "/" + o.Database,
		RawQuery: q.Encode(),
	}
	if o.User != "" {
		u.User = url.UserPassword(o.User, o.Password)
	}
	return u.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite driver adapter
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter, used for local development
// and tests. Foreign keys are always switched on.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string    { return "sqlite3" }
func (SQLiteDriver) Dialect() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	params := map[string]string{"_foreign_keys": "on"}
	for k, v := range o.Extra {
		params[k] = v
	}
	dsn := o.Database
	for i, k := range sortedKeys(params) {
		if i == 0 {
			dsn += "?"
		} else {
			dsn += "&"
		}
		dsn += k + "=" + params[k]
	}
	return dsn, nil
}

func (SQLiteDriver) ErrorMapper() ErrorMapper { return driverMapper(mapSQLiteError) }

// driverMapper adapts a driver-specific mapping (nil when the error is not
// recognised) to ErrorMapper. Errors that are already a *DBError pass
// through unchanged, since the driver error is still reachable in their
// chain when they come back out of ExecTx.
func driverMapper(m func(error) error) ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if err == nil || isMapped(err) {
			return err
		}
		if mapped := m(err); mapped != nil {
			return mapped
		}
		return err
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	RegisterDriver(PostgresDriver{})
	RegisterDriver(PgxDriver{})
	RegisterDriver(SQLiteDriver{})
}

// Package schema owns the relational layout of the pass registry: the users,
// coords, levels, passes and images tables plus the pass_images join table.
//
// The DDL is embedded per dialect in golang-migrate file naming, so the same
// files drive the migrate CLI, the server's --auto-migrate flag and the
// in-memory databases used by tests.
package schema

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Skryldev/pereval/db"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Tables lists every table of the schema, children first, so deleting in this
// order never trips a foreign key.
var Tables = []string{"pass_images", "images", "passes", "levels", "coords", "users"}

func dir(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
		return path.Join("migrations", dialect), nil
	}
	return "", fmt.Errorf("schema: unsupported dialect %q", dialect)
}

// Source returns the embedded migrations for dialect as a golang-migrate
// source driver.
func Source(dialect string) (source.Driver, error) {
	d, err := dir(dialect)
	if err != nil {
		return nil, err
	}
	return iofs.New(migrationsFS, d)
}

// NewMigrator returns a golang-migrate instance reading the embedded
// migrations for dialect and applying them to databaseURL
// (postgres://… or sqlite3://…).
func NewMigrator(dialect, databaseURL string) (*migrate.Migrate, error) {
	src, err := Source(dialect)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("schema: migrator: %w", err)
	}
	return m, nil
}

// Apply runs every up migration for dialect directly through q, in version
// order. The DDL is idempotent, so Apply can be called on an existing
// database. It does not record versions; use NewMigrator for that.
func Apply(ctx context.Context, q db.Querier, dialect string) error {
	d, err := dir(dialect)
	if err != nil {
		return err
	}
	files, err := fs.Glob(migrationsFS, path.Join(d, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("schema: list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		body, err := migrationsFS.ReadFile(f)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", f, err)
		}
		for i, stmt := range splitStatements(string(body)) {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("schema: %s statement %d: %w", path.Base(f), i+1, err)
			}
		}
	}
	return nil
}

// splitStatements splits a migration file on semicolons that end a line,
// dropping comment-only lines and empty statements.
func splitStatements(sql string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != ";" {
				statements = append(statements, strings.TrimSuffix(stmt, ";"))
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}

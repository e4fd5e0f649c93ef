// Package dbtest opens throwaway SQLite databases carrying the real schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/schema"
)

// Open returns an in-memory SQLite database with every table created and
// foreign keys enforced. The pool is capped at one connection because each
// SQLite connection to ":memory:" is a separate database.
func Open(t testing.TB, hooks ...db.Hook) *db.DB {
	t.Helper()

	d, err := db.OpenWithDriver(schema.DialectSQLite, db.DriverOptions{Database: ":memory:"}, db.Config{
		MaxOpenConns: 1,
		Hooks:        hooks,
	})
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := schema.Apply(context.Background(), d, schema.DialectSQLite); err != nil {
		t.Fatalf("dbtest: schema: %v", err)
	}
	return d
}

// Count returns the number of rows in table.
func Count(t testing.TB, d *db.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := d.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("dbtest: count %s: %v", table, err)
	}
	return n
}

// Counts returns the row count of every schema table.
func Counts(t testing.TB, d *db.DB) map[string]int64 {
	t.Helper()
	counts := make(map[string]int64, len(schema.Tables))
	for _, table := range schema.Tables {
		counts[table] = Count(t, d, table)
	}
	return counts
}

// SetStatus moves a pass to status, the way moderation does outside this
// service.
func SetStatus(t testing.TB, d *db.DB, passID int64, status string) {
	t.Helper()
	if _, err := d.Exec(context.Background(), `UPDATE passes SET status = $1 WHERE id = $2`, status, passID); err != nil {
		t.Fatalf("dbtest: set status: %v", err)
	}
}

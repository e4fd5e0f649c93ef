package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Skryldev/pereval/config"
	"github.com/Skryldev/pereval/logging"
	"github.com/Skryldev/pereval/schema"
)

var (
	verbosity int
	assumeYes bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the fstr database schema",
		Long: `migrate applies the embedded schema migrations to the configured store.

Environment:
  FSTR_DB_DRIVER   postgres (default), pgx or sqlite3
  FSTR_DB_HOST, FSTR_DB_PORT, FSTR_DB_LOGIN, FSTR_DB_PASS, FSTR_DB_SSLMODE
  FSTR_DB_PATH     SQLite file (sqlite3 driver only)`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Apply(logging.Verbosity(verbosity, "info"), "")
		},
	}
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop all tables (dev only)",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(drop),
	}
	dropCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  withMigrator(up),
		},
		&cobra.Command{
			Use:   "down [N]",
			Short: "Roll back N migrations (default: 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withMigrator(down),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print current migration version",
			Args:  cobra.NoArgs,
			RunE:  withMigrator(printVersion),
		},
		&cobra.Command{
			Use:   "force V",
			Short: "Force set migration version (bypass dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE:  withMigrator(force),
		},
		dropCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withMigrator opens a migrator for the configured store around fn.
func withMigrator(fn func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		dbURL, err := cfg.DB.MigrationURL()
		if err != nil {
			return fmt.Errorf("database url: %w", err)
		}

		m, err := schema.NewMigrator(cfg.DB.Dialect(), dbURL)
		if err != nil {
			return fmt.Errorf("migration init failed: %w", err)
		}
		defer m.Close()

		m.Log = &migrateLogger{}
		return fn(m, args)
	}
}

func up(m *migrate.Migrate, _ []string) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("up failed: %w", err)
	}
	log.Info().Msg("migrations: up completed")
	return nil
}

func down(m *migrate.Migrate, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("down: invalid steps argument %q", args[0])
		}
		steps = n
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("down failed: %w", err)
	}
	log.Info().Int("steps", steps).Msg("migrations: down completed")
	return nil
}

func printVersion(m *migrate.Migrate, _ []string) error {
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("version failed: %w", err)
	}
	fmt.Printf("version: %d  dirty: %v\n", v, dirty)
	return nil
}

func force(m *migrate.Migrate, args []string) error {
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("force: invalid version %q", args[0])
	}
	if err := m.Force(v); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	log.Info().Int("version", v).Msg("migrations: forced")
	return nil
}

func drop(m *migrate.Migrate, _ []string) error {
	if !assumeYes {
		fmt.Fprintln(os.Stderr, "WARNING: drop will destroy all tables. Type 'yes' to confirm:")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}
	if err := m.Drop(); err != nil {
		return fmt.Errorf("drop failed: %w", err)
	}
	log.Info().Msg("migrations: all tables dropped")
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────

// migrateLogger adapts zerolog to migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool { return verbosity > 0 }

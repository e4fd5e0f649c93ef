// Command fstr serves the mountain pass registry over HTTP.
//
// Configuration comes from the environment (optionally a .env file):
// FSTR_DB_HOST, FSTR_DB_PORT, FSTR_DB_LOGIN and FSTR_DB_PASS locate the
// PostgreSQL server; FSTR_DB_DRIVER=sqlite3 with FSTR_DB_PATH runs against a
// local SQLite file instead.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Skryldev/pereval/api"
	"github.com/Skryldev/pereval/config"
	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/logging"
	"github.com/Skryldev/pereval/schema"
	"github.com/Skryldev/pereval/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	addr        string
	logFile     string
	verbosity   int
	autoMigrate bool
	logArgs     bool

	connectAttempts int
	connectDelay    time.Duration
	queryTimeout    time.Duration
	slowQuery       time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "fstr",
		Short:        "FSTR pass registry server",
		Long:         `fstr accepts mountain pass submissions from the mobile client, serves them back and lets submitters edit them until moderation starts.`,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&addr, "addr", "a", "", "HTTP listen address (default HTTP_ADDR or :5000)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Rotating log file (default LOG_FILE; empty logs to console only)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	rootCmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Create missing tables on startup")
	rootCmd.Flags().BoolVar(&logArgs, "log-query-args", false, "Include bound parameters in query logs (development only)")

	// Advanced store flags
	rootCmd.Flags().IntVar(&connectAttempts, "connect-attempts", 5, "Attempts to reach the store on startup")
	rootCmd.Flags().DurationVar(&connectDelay, "connect-delay", 2*time.Second, "Delay between startup connection attempts")
	rootCmd.Flags().DurationVar(&queryTimeout, "query-timeout", 10*time.Second, "Default statement timeout")
	rootCmd.Flags().DurationVar(&slowQuery, "slow-query", 200*time.Millisecond, "Log statements slower than this at warn level")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fstr %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	if logFile == "" {
		logFile = cfg.LogFile
	}

	logging.Apply(logging.Verbosity(verbosity, cfg.LogLevel), logFile)

	log.Info().
		Str("version", version).
		Str("addr", addr).
		Str("driver", cfg.DB.Driver).
		Str("host", cfg.DB.Host).
		Int("port", cfg.DB.Port).
		Msg("Starting fstr")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queries := &db.QueryStats{}
	database, err := openStore(ctx, cfg.DB, queries)
	if err != nil {
		return err
	}
	defer database.Close()

	if autoMigrate {
		if err := schema.Apply(ctx, database, cfg.DB.Dialect()); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		log.Info().Str("dialect", cfg.DB.Dialect()).Msg("Schema applied")
	}

	svc := service.New(database, service.WithLogger(log.Logger))
	server := api.NewServer(addr, api.NewRouter(svc, database, api.WithQueryStats(queries)))

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info().Msg("Stopped")
	return nil
}

// openStore opens the pool, retrying while the store is unreachable so the
// server can start alongside its database.
func openStore(ctx context.Context, c config.DB, queries *db.QueryStats) (*db.DB, error) {
	dbCfg := db.Config{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		DefaultTimeout:  queryTimeout,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{
				Logger:             &log.Logger,
				SlowQueryThreshold: slowQuery,
				LogArgs:            logArgs,
			}),
			db.NewMetricsHook(queries),
		},
	}
	if c.Driver == schema.DialectSQLite {
		// SQLite allows a single writer.
		dbCfg.MaxOpenConns = 1
		dbCfg.MaxIdleConns = 1
	}

	var database *db.DB
	err := db.WithRetry(ctx, db.RetryConfig{
		MaxAttempts: connectAttempts,
		Delay:       connectDelay,
	}, func() error {
		var err error
		database, err = db.OpenWithDriver(c.Driver, c.DriverOptions(), dbCfg)
		if err != nil {
			log.Warn().Err(err).Msg("Store not reachable yet")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	stats := database.Stats()
	log.Info().Int("open", stats.OpenConnections).Msg("Store connected")
	return database, nil
}

// Package config reads the service configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Skryldev/pereval/db"
	"github.com/Skryldev/pereval/schema"
)

// DatabaseName is fixed; only the server location and credentials vary.
const DatabaseName = "fstr"

// DB describes how to reach the store.
type DB struct {
	Driver         string // postgres, pgx or sqlite3
	Host           string
	Port           int
	Login          string
	Password       string
	SSLMode        string
	ConnectTimeout int    // seconds
	Path           string // SQLite file, used by the sqlite3 driver only
}

type Config struct {
	DB       DB
	HTTPAddr string
	LogLevel string
	LogFile  string
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the environment, applying defaults.
func FromEnv() (Config, error) {
	var c Config

	c.DB.Driver = env("FSTR_DB_DRIVER", "postgres")
	c.DB.Host = env("FSTR_DB_HOST", "localhost")
	c.DB.Login = env("FSTR_DB_LOGIN", "postgres")
	c.DB.Password = env("FSTR_DB_PASS", "password")
	c.DB.SSLMode = env("FSTR_DB_SSLMODE", "disable")
	c.DB.Path = env("FSTR_DB_PATH", DatabaseName+".db")

	var err error
	if c.DB.Port, err = envInt("FSTR_DB_PORT", 5432); err != nil {
		return c, err
	}
	if c.DB.ConnectTimeout, err = envInt("FSTR_DB_CONNECT_TIMEOUT", 10); err != nil {
		return c, err
	}

	c.HTTPAddr = env("HTTP_ADDR", ":5000")
	c.LogLevel = strings.ToLower(env("LOG_LEVEL", "info"))
	c.LogFile = env("LOG_FILE", "")

	if _, err := db.LookupDriver(c.DB.Driver); err != nil {
		return c, fmt.Errorf("FSTR_DB_DRIVER: %w", err)
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		return c, fmt.Errorf("FSTR_DB_PORT out of range: %d", c.DB.Port)
	}
	return c, nil
}

// Dialect returns the schema dialect matching the configured driver.
func (d DB) Dialect() string {
	if d.Driver == schema.DialectSQLite {
		return schema.DialectSQLite
	}
	return schema.DialectPostgres
}

// DriverOptions converts the configuration for db.OpenWithDriver.
func (d DB) DriverOptions() db.DriverOptions {
	if d.Driver == schema.DialectSQLite {
		return db.DriverOptions{Database: d.Path}
	}
	return db.DriverOptions{
		Host:           d.Host,
		Port:           d.Port,
		User:           d.Login,
		Password:       d.Password,
		Database:       DatabaseName,
		SSLMode:        d.SSLMode,
		ConnectTimeout: d.ConnectTimeout,
	}
}

// MigrationURL returns the database URL understood by golang-migrate.
func (d DB) MigrationURL() (string, error) {
	if d.Driver == schema.DialectSQLite {
		return "sqlite3://" + d.Path + "?_foreign_keys=on", nil
	}
	return db.PostgresURL(d.DriverOptions())
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

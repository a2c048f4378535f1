// Package config loads application configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/popcorn-palace/internal/database"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBDriver        string // "mysql" (default) or "postgres"
	DBUser          string
	DBPass          string // may be empty
	DBHost          string
	DBPort          string
	DBName          string
	DBSSLMode       string // postgres only
	DBMigrate       bool   // create the schema on startup
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads a .env file when present and then builds a Config from the
// environment. Required variables are enforced by must(); a missing value
// terminates the program.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env", "error", err)
	}
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBDriver:        envStr("DB_DRIVER", database.DriverMySQL),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		DBSSLMode:       envStr("DB_SSLMODE", "disable"),
		DBMigrate:       envBool("DB_MIGRATE", true),
		RequestTimeout:  envDur("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Database returns the connection options described by c.
func (c Config) Database() database.Options {
	return database.Options{
		Driver:  c.DBDriver,
		User:    c.DBUser,
		Pass:    c.DBPass,
		Host:    c.DBHost,
		Port:    c.DBPort,
		Name:    c.DBName,
		SSLMode: c.DBSSLMode,
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the error is logged and the process exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		slog.Error("missing required env var", "key", key)
		os.Exit(1)
	}
	return v
}

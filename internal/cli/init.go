// Package cli provides common CLI initialization utilities shared by
// cmd/ledger and cmd/ledger-events.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger from cfg and installs it as the
// slog default. Invalid settings fall back to info level.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logCfg := applog.DefaultConfig()
	if level, err := cfg.SlogLevel(); err == nil {
		logCfg.Level = level
	}
	logCfg.Format = cfg.LogFormat
	logCfg.Component = component

	logger := applog.New(logCfg)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// The configured logger depends on a valid config.
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenStorage opens the repository named by cfg.DatabaseURL.
// Returns the repository or exits the process on failure.
func OpenStorage(ctx context.Context, logger *applog.Logger, cfg *config.Config) storage.Repository {
	repo, backend, err := storage.Open(ctx, storage.Options{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
	})
	logger = logger.WithComponent(applog.ComponentStorage)
	if err != nil {
		logger.Error("Failed to open storage", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Storage ready", applog.FieldBackend, backend.String())
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Fatal logs err and exits.
func Fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, applog.FieldError, err)
	os.Exit(1)
}

// Package cli provides common process initialization shared by the
// budget, budget-worker and budgetctl binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/cache"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/session"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Component = component
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads the env file and configuration, then returns the logger.
// Validation failures are returned rather than exiting so callers can add
// flag overrides first.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	return cfg, SetupLogger(cfg, component)
}

// MustValidate logs the configuration problems and exits when cfg is invalid.
func MustValidate(cfg *config.Config, logger *log.Logger) {
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
}

// SessionConfig maps the autosave settings of cfg onto a session config.
// The totals cache is shared by every session of the process.
func SessionConfig(cfg *config.Config, publisher session.Publisher, totals cache.Cache[core.Totals], logger *log.Logger) session.Config {
	sc := session.DefaultConfig()
	sc.QuietPeriod = cfg.AutosaveQuietPeriod
	sc.SavedReset = cfg.SaveStatusReset
	sc.ErrorReset = cfg.SaveErrorReset
	if cfg.SaveTimeout > 0 {
		sc.SaveTimeout = cfg.SaveTimeout
	}
	sc.Locale = core.LocaleFor(cfg.Locale)
	sc.Publisher = publisher
	sc.Totals = totals
	sc.Logger = logger
	return sc
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// cleanup runs after the signal, bounded by timeout, and done is closed when
// it has returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err)
	fmt.Fprintln(os.Stderr, msg+":", err)
	os.Exit(1)
}

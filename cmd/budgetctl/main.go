package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
)

// flags holds the persistent flag values merged over the env config.
var flags struct {
	backend     string
	sqlitePath  string
	databaseURL string
	dataDir     string
	strategy    string
	locale      string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Inspect, import and export household budget months",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.backend, "backend", "", "data backend (memory, sqlite, postgres, local)")
	pf.StringVar(&flags.sqlitePath, "db", "", "SQLite database path")
	pf.StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL connection URL")
	pf.StringVar(&flags.dataDir, "data-dir", "", "local backend data directory")
	pf.StringVar(&flags.locale, "locale", "", "locale for amounts (pt-BR, en-US, it-IT)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(monthsCmd())
	root.AddCommand(totalsCmd())
	root.AddCommand(savingsCmd())
	root.AddCommand(importCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(migrateCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the command-line overrides.
func loadConfig() (*config.Config, *log.Logger, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	err := cfg.Override(config.Config{
		DataBackend:      flags.backend,
		SQLiteDBPath:     flags.sqlitePath,
		DatabaseURL:      flags.databaseURL,
		LocalDataDir:     flags.dataDir,
		FullSaveStrategy: flags.strategy,
		Locale:           flags.locale,
		LogLevel:         flags.logLevel,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Component = log.ComponentCLI
	lc.Output = os.Stderr
	return cfg, log.New(lc), nil
}

// openBackend builds the configured backend; callers must Close the result.
func openBackend(ctx context.Context) (*config.Config, *backend.BackendResult, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := backend.Migrate(bc); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, nil, err
	}
	return cfg, res, nil
}

func requireUser(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	return user, nil
}

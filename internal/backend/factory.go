package backend

import (
	"context"
	"fmt"

	"budget/internal/log"
	"budget/internal/reconcile"
	"budget/internal/store"
	"budget/internal/store/local"
	"budget/internal/store/memory"
	"budget/internal/store/postgres"
	"budget/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.remote(ctx, config, memory.New())
	case SQLiteBackend:
		s, err := sqlite.Open(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return f.remote(ctx, config, s)
	case PostgresBackend:
		s, err := postgres.Connect(ctx, config.DatabaseURL, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Postgres backend")
		return f.remote(ctx, config, s)
	case LocalBackend:
		return f.createLocalBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// remote puts the reconciliation engine in front of a remote store.
func (f *DefaultFactory) remote(ctx context.Context, config Config, rs store.RemoteStore) (*BackendResult, error) {
	var strategy reconcile.Strategy
	if config.FullSaveStrategy != "" {
		var err error
		if strategy, err = reconcile.StrategyByName(config.FullSaveStrategy); err != nil {
			rs.Close()
			return nil, err
		}
	}
	engine := reconcile.NewEngine(rs, strategy, f.logger)

	f.logger.InfoContext(ctx, "Backend ready",
		log.FieldBackend, config.Type.String(),
		log.FieldStrategy, engine.FullStrategy().Name())

	return &BackendResult{
		Syncer:  engine,
		Cleanup: rs.Close,
	}, nil
}

func (f *DefaultFactory) createLocalBackend(ctx context.Context, config Config) (*BackendResult, error) {
	blobs, err := local.NewBlobStore(config.LocalDataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized local backend", "data_directory", config.LocalDataDir)

	return &BackendResult{
		Syncer:  local.NewEngine(blobs, f.logger),
		Cleanup: nil,
	}, nil
}

// Migrate applies schema migrations for SQL backends. Other backends have
// no schema and succeed immediately.
func Migrate(config Config) error {
	switch config.Type {
	case SQLiteBackend:
		return sqlite.RunMigrations(sqlite.DSN(config.SQLiteDBPath))
	case PostgresBackend:
		return postgres.RunMigrations(config.DatabaseURL)
	case MemoryBackend, LocalBackend:
		return nil
	default:
		return fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

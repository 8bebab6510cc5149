package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/telhawk-systems/sportsagg/common/config"
	"github.com/telhawk-systems/sportsagg/common/database"
	"github.com/telhawk-systems/sportsagg/common/logging"
)

// Supported values for database.driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Open migrates the configured database to the latest schema and returns a
// Store for it.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case DriverMemory:
		logger.Warn("Using in-memory game store; data is lost on restart")
		return NewMemoryStore(), nil
	case DriverSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	if err := MigrateUp(ctx, cfg, logger); err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		return OpenSQLite(cfg.SQLite.Path)
	}
	return NewPostgresStore(ctx, cfg.Postgres.ConnString(), cfg.Postgres.MaxConns)
}

// MigrateUp applies pending migrations for cfg and logs the resulting version.
func MigrateUp(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close migrator", logging.Error(err))
		}
	}()

	logger.Info("Running database migrations", slog.String("driver", cfg.Driver))

	ctx, cancel := database.MigrationContext(ctx)
	defer cancel()
	if err := m.Up(ctx); err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.Warn("Could not get migration version", logging.Error(err))
		return nil
	}
	logger.Info("Database migration complete",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/telhawk-systems/sportsagg/common/config"
	"github.com/telhawk-systems/sportsagg/common/storage/migrations"
)

// ErrNoMigrations is returned for drivers without a schema.
var ErrNoMigrations = errors.New("driver has no migrations")

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator returns a Migrator for the configured driver.
func NewMigrator(cfg config.DatabaseConfig) (*Migrator, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return NewPostgresMigrator(cfg.Postgres.ConnString())
	case DriverSQLite:
		return NewSQLiteMigrator(cfg.SQLite.Path)
	case DriverMemory:
		return nil, ErrNoMigrations
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// NewPostgresMigrator returns a Migrator for the database at url.
func NewPostgresMigrator(url string) (*Migrator, error) {
	src, err := iofs.New(migrations.FS, migrations.PostgresDir)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return &Migrator{m: m}, nil
}

// NewSQLiteMigrator returns a Migrator for the database file at path.
func NewSQLiteMigrator(path string) (*Migrator, error) {
	src, err := iofs.New(migrations.FS, migrations.SQLiteDir)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	// The migrate driver owns this handle and closes it in Close.
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. Already being current is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, m.m.Up)
}

// Down reverts all migrations.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, m.m.Down)
}

// Version returns the current schema version. A database without any
// applied migration reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (m *Migrator) run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	case <-ctx.Done():
		m.m.GracefulStop <- true
		<-done
		return ctx.Err()
	}
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/sportsagg/common/database"
	"github.com/telhawk-systems/sportsagg/common/models"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connString and verifies the connection.
func NewPostgresStore(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := database.PingContext(ctx)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := database.PingContext(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Insert implements Inserter.
func (s *PostgresStore) Insert(ctx context.Context, game *models.Game) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return InsertResult{}, err
	}
	row, err := prepare(game)
	if err != nil {
		return InsertResult{}, fmt.Errorf("prepare game: %w", err)
	}

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO games (id, scheduled_at_utc, sport_type, competition_name, home_team, away_team, fingerprint, created_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = s.pool.Exec(ctx, query,
		row.ID, row.ScheduledAtUTC, row.SportType, row.CompetitionName,
		row.HomeTeam, row.AwayTeam, row.Fingerprint, row.CreatedAtUTC,
	)
	if err != nil {
		if isPgFingerprintViolation(err) {
			return conflict(), nil
		}
		return InsertResult{}, fmt.Errorf("failed to insert game: %w", err)
	}

	return InsertResult{Outcome: OutcomeInserted, ID: row.ID}, nil
}

func isPgFingerprintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgUniqueViolation &&
		pgErr.ConstraintName == ConstraintFingerprint
}

// GetByFingerprint implements Store.
func (s *PostgresStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, scheduled_at_utc, sport_type, competition_name, home_team, away_team, fingerprint, created_at_utc
		FROM games
		WHERE fingerprint = $1
	`

	var g models.Game
	err := s.pool.QueryRow(ctx, query, fingerprint).Scan(
		&g.ID, &g.ScheduledAtUTC, &g.SportType, &g.CompetitionName,
		&g.HomeTeam, &g.AwayTeam, &g.Fingerprint, &g.CreatedAtUTC,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	g.ScheduledAtUTC = g.ScheduledAtUTC.UTC()
	g.CreatedAtUTC = g.CreatedAtUTC.UTC()
	return &g, nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

var _ Store = (*PostgresStore)(nil)

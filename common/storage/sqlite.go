package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/telhawk-systems/sportsagg/common/database"
	"github.com/telhawk-systems/sportsagg/common/models"
)

// SQLiteStore is a Store backed by an embedded SQLite database file.
type SQLiteStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// sqliteDSN builds a modernc DSN for path.
func sqliteDSN(path string) string {
	return filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// OpenSQLite opens the database at path. Migrations must already be applied
// (see Migrator).
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; the unique index still decides races.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return ErrNotConfigured
	}
	ctx, cancel := database.PingContext(ctx)
	defer cancel()
	return s.sqlDB.PingContext(ctx)
}

// Insert implements Inserter.
func (s *SQLiteStore) Insert(ctx context.Context, game *models.Game) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return InsertResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return InsertResult{}, ErrNotConfigured
	}
	row, err := prepare(game)
	if err != nil {
		return InsertResult{}, fmt.Errorf("prepare game: %w", err)
	}

	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO games (
		   id,
		   scheduled_at_utc,
		   sport_type,
		   competition_name,
		   home_team,
		   away_team,
		   fingerprint,
		   created_at_utc
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		toMillis(row.ScheduledAtUTC),
		row.SportType,
		row.CompetitionName,
		row.HomeTeam,
		row.AwayTeam,
		row.Fingerprint,
		toMillis(row.CreatedAtUTC),
	)
	if err != nil {
		if isSQLiteFingerprintViolation(err) {
			return conflict(), nil
		}
		return InsertResult{}, fmt.Errorf("insert game: %w", err)
	}
	return InsertResult{Outcome: OutcomeInserted, ID: row.ID}, nil
}

func isSQLiteFingerprintViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT:
	default:
		return false
	}
	message := strings.ToLower(sqliteErr.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "games.fingerprint")
}

// GetByFingerprint implements Store.
func (s *SQLiteStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.Game, error) {
	if s == nil || s.sqlDB == nil {
		return nil, ErrNotConfigured
	}

	var (
		g                    models.Game
		scheduled, createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, scheduled_at_utc, sport_type, competition_name, home_team, away_team, fingerprint, created_at_utc
		 FROM games WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&g.ID, &scheduled, &g.SportType, &g.CompetitionName, &g.HomeTeam, &g.AwayTeam, &g.Fingerprint, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get game: %w", err)
	}
	g.ScheduledAtUTC = fromMillis(scheduled)
	g.CreatedAtUTC = fromMillis(createdAt)
	return &g, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, ErrNotConfigured
	}
	var n int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

var _ Store = (*SQLiteStore)(nil)

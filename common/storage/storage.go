// Package storage persists accepted games. The unique index on the
// fingerprint column is the authoritative duplicate check for the pipeline.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/sportsagg/common/models"
)

// ConstraintFingerprint names the unique index on games.fingerprint.
const ConstraintFingerprint = "ux_games_fingerprint"

// Store errors.
var (
	ErrNotConfigured = errors.New("storage is not configured")
	ErrNotFound      = errors.New("game not found")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Outcome tags the result of an insert attempt.
type Outcome int

const (
	// OutcomeInserted means a new row was written.
	OutcomeInserted Outcome = iota + 1
	// OutcomeConflict means a row with the same fingerprint already exists.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// InsertResult is returned by a successful Insert call. A fingerprint
// uniqueness violation is a result, not an error.
type InsertResult struct {
	Outcome Outcome

	// ID of the inserted row. Empty on conflict.
	ID string

	// Constraint names the violated unique index on conflict.
	Constraint string
}

// Inserter writes games.
type Inserter interface {
	Insert(ctx context.Context, game *models.Game) (InsertResult, error)
}

// Store is a game store.
type Store interface {
	Inserter

	// GetByFingerprint returns the stored game with fingerprint, or ErrNotFound.
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.Game, error)

	// Count returns the number of stored games.
	Count(ctx context.Context) (int64, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// prepare fills the generated fields of a game that is about to be written.
func prepare(game *models.Game) (models.Game, error) {
	row := *game
	if row.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return row, err
		}
		row.ID = id.String()
	}
	if row.CreatedAtUTC.IsZero() {
		row.CreatedAtUTC = time.Now()
	}
	row.CreatedAtUTC = row.CreatedAtUTC.UTC()
	row.ScheduledAtUTC = row.ScheduledAtUTC.UTC()
	return row, nil
}

func conflict() InsertResult {
	return InsertResult{Outcome: OutcomeConflict, Constraint: ConstraintFingerprint}
}

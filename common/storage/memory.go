package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/telhawk-systems/sportsagg/common/models"
)

// MemoryStore keeps games in process memory. It enforces the same
// fingerprint uniqueness as the SQL stores and is used for local runs and tests.
type MemoryStore struct {
	mu            sync.Mutex
	byFingerprint map[string]models.Game
	ids           map[string]struct{}
	closed        bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byFingerprint: make(map[string]models.Game),
		ids:           make(map[string]struct{}),
	}
}

// Insert implements Inserter.
func (s *MemoryStore) Insert(ctx context.Context, game *models.Game) (InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return InsertResult{}, err
	}
	row, err := prepare(game)
	if err != nil {
		return InsertResult{}, fmt.Errorf("prepare game: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return InsertResult{}, ErrNotConfigured
	}
	if _, ok := s.byFingerprint[row.Fingerprint]; ok {
		return conflict(), nil
	}
	if _, ok := s.ids[row.ID]; ok {
		return InsertResult{}, fmt.Errorf("insert game: duplicate id %s", row.ID)
	}

	s.byFingerprint[row.Fingerprint] = row
	s.ids[row.ID] = struct{}{}
	return InsertResult{Outcome: OutcomeInserted, ID: row.ID}, nil
}

// GetByFingerprint implements Store.
func (s *MemoryStore) GetByFingerprint(_ context.Context, fingerprint string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byFingerprint[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byFingerprint)), nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotConfigured
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)

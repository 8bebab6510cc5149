package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sportsagg/common/config"
	"github.com/telhawk-systems/sportsagg/common/logging"
	"github.com/telhawk-systems/sportsagg/common/models"
	"github.com/telhawk-systems/sportsagg/common/storage"
	"github.com/telhawk-systems/sportsagg/processor/internal/dedup"
)

func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func report(sport, competition, home, away, scheduled string) *models.IngestedEvent {
	return &models.IngestedEvent{
		SportType:       sport,
		CompetitionName: competition,
		HomeTeam:        home,
		AwayTeam:        away,
		ScheduledAtUTC:  at(scheduled),
		Source:          "football-mock",
	}
}

func newEvent(home, away, scheduled string) *models.IngestedEvent {
	return report("football", "Premier League", home, away, scheduled)
}

func newSQLiteStore(t *testing.T) storage.Store {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "games.db")},
	}
	store, err := storage.Open(context.Background(), cfg, logging.Discard().Logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRedisOracle(t *testing.T) (*miniredis.Miniredis, *dedup.Oracle) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cache := dedup.NewRedisCache(client, dedup.RedisCacheConfig{
		Timeout:         time.Second,
		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}, logging.Discard().Logger)
	return mr, dedup.NewOracle(cache, dedup.DefaultTTL, logging.Discard().Logger)
}

func disabledOracle() *dedup.Oracle {
	return dedup.NewOracle(dedup.NopCache{}, dedup.DefaultTTL, logging.Discard().Logger)
}

// recordingOracle never reports duplicates and remembers what was marked.
type recordingOracle struct {
	mu      sync.Mutex
	marked  []string
	markErr error
}

func (o *recordingOracle) IsDuplicate(context.Context, string, string) bool { return false }

func (o *recordingOracle) MarkProcessed(_ context.Context, fingerprint string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.marked = append(o.marked, fingerprint)
	return o.markErr
}

func (o *recordingOracle) Marked() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.marked...)
}

// failingStore rejects every insert.
type failingStore struct{ err error }

func (s failingStore) Insert(context.Context, *models.Game) (storage.InsertResult, error) {
	return storage.InsertResult{}, s.err
}

// blockingStore waits for the caller to give up.
type blockingStore struct{ entered chan struct{} }

func (s blockingStore) Insert(ctx context.Context, _ *models.Game) (storage.InsertResult, error) {
	close(s.entered)
	<-ctx.Done()
	return storage.InsertResult{}, errors.Join(errors.New("insert aborted"), ctx.Err())
}

type outcomeLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *outcomeLog) Record(source, outcome string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, source+":"+outcome)
}

func (l *outcomeLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sportsagg/common/models"
)

func testGame(fingerprint string) *models.Game {
	return &models.Game{
		ScheduledAtUTC:  time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC),
		SportType:       "football",
		CompetitionName: "premier league",
		HomeTeam:        "arsenal",
		AwayTeam:        "chelsea",
		Fingerprint:     fingerprint,
	}
}

func fp(n int) string {
	return fmt.Sprintf("%064x", n)
}

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("insert then conflict", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		res, err := store.Insert(ctx, testGame(fp(1)))
		require.NoError(t, err)
		assert.Equal(t, OutcomeInserted, res.Outcome)
		_, err = uuid.Parse(res.ID)
		assert.NoError(t, err)

		res, err = store.Insert(ctx, testGame(fp(1)))
		require.NoError(t, err)
		assert.Equal(t, OutcomeConflict, res.Outcome)
		assert.Equal(t, ConstraintFingerprint, res.Constraint)
		assert.Empty(t, res.ID)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("get by fingerprint", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		game := testGame(fp(2))
		game.CreatedAtUTC = time.Date(2026, 2, 15, 8, 30, 0, 0, time.UTC)
		res, err := store.Insert(ctx, game)
		require.NoError(t, err)

		got, err := store.GetByFingerprint(ctx, fp(2))
		require.NoError(t, err)
		assert.Equal(t, res.ID, got.ID)
		assert.True(t, game.ScheduledAtUTC.Equal(got.ScheduledAtUTC))
		assert.True(t, game.CreatedAtUTC.Equal(got.CreatedAtUTC))
		assert.Equal(t, "premier league", got.CompetitionName)
		assert.Equal(t, "arsenal", got.HomeTeam)
		assert.Equal(t, "chelsea", got.AwayTeam)

		_, err = store.GetByFingerprint(ctx, fp(999))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate id is an error, not a conflict", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id := uuid.NewString()
		first := testGame(fp(3))
		first.ID = id
		_, err := store.Insert(ctx, first)
		require.NoError(t, err)

		second := testGame(fp(4))
		second.ID = id
		res, err := store.Insert(ctx, second)
		assert.Error(t, err)
		assert.NotEqual(t, OutcomeConflict, res.Outcome)
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		store := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := store.Insert(ctx, testGame(fp(5)))
		assert.True(t, errors.Is(err, context.Canceled))

		n, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("concurrent inserts of one fingerprint", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const workers = 32
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			inserted  int
			conflicts int
			errs      []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := store.Insert(ctx, testGame(fp(6)))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					errs = append(errs, err)
				case res.Outcome == OutcomeInserted:
					inserted++
				case res.Outcome == OutcomeConflict:
					conflicts++
				}
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		assert.Equal(t, 1, inserted)
		assert.Equal(t, workers-1, conflicts)

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(context.Background()))
	})
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "inserted", OutcomeInserted.String())
	assert.Equal(t, "conflict", OutcomeConflict.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}

func TestPrepare(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	game := testGame(fp(1))
	game.ScheduledAtUTC = time.Date(2026, 2, 16, 12, 0, 0, 0, plus2)

	row, err := prepare(game)
	require.NoError(t, err)

	id, err := uuid.Parse(row.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.False(t, row.CreatedAtUTC.IsZero())
	assert.Equal(t, time.UTC, row.CreatedAtUTC.Location())
	assert.Equal(t, time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC), row.ScheduledAtUTC)

	// The caller's value is not modified.
	assert.Empty(t, game.ID)
}

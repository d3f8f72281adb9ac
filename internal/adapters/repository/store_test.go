package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeshield/typeshield/internal/adapters/repository"
	"github.com/typeshield/typeshield/internal/domain/model"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, repository.NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typeshield_test.db")
	store, err := repository.NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	runStoreSuite(t, store)
}

func TestSQLiteStore_NoPath(t *testing.T) {
	_, err := repository.NewSQLiteStore(context.Background(), "")
	require.Error(t, err)
}

// Two racing registrations for the same username: the unique index decides,
// and the loser must surface as ErrDuplicateUser rather than a raw driver error.
func TestSQLiteStore_ConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "typeshield_race.db")
	store, err := repository.NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	newUser := func() model.User {
		return model.User{
			ID:           uuid.New(),
			Username:     "contender",
			PasswordHash: "$2a$10$fakehashfakehashfakehash",
			CreatedAt:    time.Now().UTC().Truncate(time.Second),
		}
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.CreateUser(ctx, newUser())
		}()
	}
	wg.Wait()
	close(errs)

	var created, duplicate int
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, repository.ErrDuplicateUser):
			duplicate++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, duplicate)

	n, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func runStoreSuite(t *testing.T, store repository.Store) {
	t.Helper()
	ctx := context.Background()
	defer store.Close()

	user := model.User{
		ID:           uuid.New(),
		Username:     "alice",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}

	t.Run("users", func(t *testing.T) {
		require.NoError(t, store.CreateUser(ctx, user))

		dup := user
		dup.ID = uuid.New()
		require.ErrorIs(t, store.CreateUser(ctx, dup), repository.ErrDuplicateUser)

		got, err := store.GetUserByName(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.PasswordHash, got.PasswordHash)

		_, err = store.GetUserByName(ctx, "nobody")
		require.ErrorIs(t, err, repository.ErrNotFound)

		n, err := store.CountUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("templates", func(t *testing.T) {
		_, err := store.GetTemplate(ctx, user.ID)
		require.ErrorIs(t, err, repository.ErrNoTemplate)

		tmpl := model.Template{
			DwellTimes:  []float64{101.5, 98, 110},
			FlightTimes: []float64{45.25, 52},
			TotalTime:   407.75,
			ErrorCount:  1,
		}
		require.NoError(t, store.SaveTemplate(ctx, user.ID, tmpl))

		got, err := store.GetTemplate(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, tmpl.DwellTimes, got.DwellTimes)
		assert.Equal(t, tmpl.FlightTimes, got.FlightTimes)
		assert.Equal(t, tmpl.TotalTime, got.TotalTime)
		assert.Equal(t, tmpl.ErrorCount, got.ErrorCount)

		// Re-enrollment replaces, 1:1 with the user.
		tmpl.DwellTimes = []float64{90, 90, 90}
		require.NoError(t, store.SaveTemplate(ctx, user.ID, tmpl))
		got, err = store.GetTemplate(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []float64{90, 90, 90}, got.DwellTimes)
	})

	t.Run("attempts", func(t *testing.T) {
		base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
		score := func(v float64) *float64 { return &v }

		records := []model.AttemptRecord{
			{ID: uuid.New(), UserID: user.ID, Username: "alice", Status: model.StatusSuccess, Score: score(92.5), Reasons: []string{}, CreatedAt: base},
			{ID: uuid.New(), UserID: user.ID, Username: "alice", Status: model.StatusFailure, Score: score(61.2), Reasons: []string{"Dwell timings differ (score 55.1%)"}, CreatedAt: base.Add(time.Minute)},
			{ID: uuid.New(), UserID: user.ID, Username: "alice", Status: model.StatusFailure, Score: nil, Reasons: []string{}, CreatedAt: base.Add(2 * time.Minute)},
		}
		for _, rec := range records {
			require.NoError(t, store.LogAttempt(ctx, rec))
		}
		// Unknown-user failure attached to no user id.
		require.NoError(t, store.LogAttempt(ctx, model.AttemptRecord{
			ID: uuid.New(), Username: "mallory", Status: model.StatusFailure, Reasons: []string{}, CreatedAt: base,
		}))

		recent, err := store.RecentAttempts(ctx, user.ID, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, records[2].ID, recent[0].ID) // newest first
		assert.Nil(t, recent[0].Score)
		require.NotNil(t, recent[1].Score)
		assert.Equal(t, 61.2, *recent[1].Score)
		assert.Equal(t, []string{"Dwell timings differ (score 55.1%)"}, recent[1].Reasons)

		success, failure, err := store.AttemptTotals(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, success)
		assert.Equal(t, 2, failure)
	})
}

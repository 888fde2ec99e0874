package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/quiz"
	"math-learning-bot/internal/domain/user"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPreferenceStore_GetSet(t *testing.T) {
	store := NewPreferenceStore(newTestDB(t))
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "preferences/1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "preferences/1", []byte(`{"version":1}`)))
	require.NoError(t, store.Set(ctx, "preferences/1", []byte(`{"version":2}`)))

	data, ok, err := store.Get(ctx, "preferences/1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":2}`, string(data))
}

func TestPreferenceStore_BacksPreferenceSync(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	key := prefsync.UserKey(9)

	s, err := prefsync.Open(ctx, key, NewPreferenceStore(db))
	require.NoError(t, err)
	_, err = s.Write(ctx, preferences.UserInitiated, preferences.Partial{
		preferences.FieldCategory:   preferences.String("multiplication"),
		preferences.FieldDifficulty: preferences.Int(3),
	}, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	reopened, err := prefsync.Open(ctx, key, NewPreferenceStore(db))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close(ctx) })

	snap := reopened.Current()
	assert.Equal(t, uint64(1), snap.Version())
	assert.Equal(t, "multiplication", snap.Category())
	assert.Equal(t, 3, snap.Difficulty())
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	missing, err := repo.FindByTelegramID(ctx, 555)
	require.NoError(t, err)
	assert.Nil(t, missing)

	u := user.NewUser(555, "ada", "Ada", "", "en")
	require.NoError(t, repo.Save(ctx, u))
	require.NotZero(t, u.ID())

	found, err := repo.FindByTelegramID(ctx, 555)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID(), found.ID())
	assert.Equal(t, "Ada", found.FirstName())

	found.UpdateProfile("ada", "Ada", "Lovelace", "en")
	require.NoError(t, repo.Update(ctx, found))
	require.NoError(t, repo.UpdateLastActive(ctx, found.ID()))

	byID, err := repo.FindByID(ctx, found.ID())
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", byID.LastName())

	all, err := repo.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAttemptRepository(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	u := user.NewUser(1, "kid", "Kid", "", "en")
	require.NoError(t, users.Save(ctx, u))

	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	attempts := []*quiz.Attempt{
		quiz.RestoreAttempt(0, u.ID(), "addition", "carrying", 2, "17 + 5 = ?", 22, 22, true, false, 1200, day.Add(-2*time.Hour)),
		quiz.RestoreAttempt(0, u.ID(), "addition", "carrying", 2, "18 + 7 = ?", 24, 25, false, false, 1500, day.Add(9*time.Hour)),
		quiz.RestoreAttempt(0, u.ID(), "division", "exact", 1, "12 ÷ 3 = ?", 4, 4, true, false, 900, day.Add(10*time.Hour)),
	}
	for _, a := range attempts {
		require.NoError(t, repo.SaveAttempt(ctx, a))
		assert.NotZero(t, a.ID())
	}

	stats, err := repo.GetUserStats(ctx, u.ID(), day)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAttempts)
	assert.Equal(t, 2, stats.CorrectAttempts)
	assert.Equal(t, 2, stats.AttemptsSince)
	assert.Equal(t, quiz.CategoryStats{Attempts: 2, Correct: 1}, stats.ByCategory["addition"])
	assert.True(t, day.Add(10*time.Hour).Equal(stats.LastAttemptAt), stats.LastAttemptAt)

	recent, err := repo.RecentAttempts(ctx, u.ID(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "division", recent[0].Category())
	assert.False(t, recent[1].Correct())

	ids, err := repo.GetUsersWithAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []user.ID{u.ID()}, ids)
}

func TestAttemptRepository_EmptyStats(t *testing.T) {
	repo := NewAttemptRepository(newTestDB(t))

	stats, err := repo.GetUserStats(context.Background(), 99, time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAttempts)
	assert.True(t, stats.LastAttemptAt.IsZero())
	assert.Zero(t, stats.Accuracy())
}

package prefsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/infrastructure/cache"
	"math-learning-bot/internal/infrastructure/persistence/memory"
)

func TestCoalescer_ManyWritesBecomeOneSet(t *testing.T) {
	kv := memory.NewKV()
	s := openStore(t, kv, WithDebounce(time.Hour))
	ctx := context.Background()

	writes := []preferences.Partial{
		{preferences.FieldDifficulty: preferences.Int(2)},
		{preferences.FieldLanguage: preferences.String("nl")},
		{preferences.FieldDifficulty: preferences.Int(3)},
		{preferences.FieldHighContrast: preferences.Bool(true)},
	}
	for _, w := range writes {
		_, err := s.Write(ctx, preferences.UserInitiated, w, s.Current().Version())
		require.NoError(t, err)
	}

	pending := s.Coalescer().Pending()
	want := []string{"difficulty", "high_contrast", "language"}
	if diff := cmp.Diff(want, pending.Fields.Names()); diff != "" {
		t.Errorf("pending fields mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(4), pending.Snapshot.Version())
	assert.Zero(t, kv.Sets())

	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, kv.Sets())
	assert.False(t, s.Coalescer().HasPending())

	durable, ok := durableSnapshot(t, kv)
	require.True(t, ok)
	assert.Equal(t, uint64(4), durable.Version())
	assert.Equal(t, 3, durable.Difficulty())
	assert.Equal(t, "nl", durable.Language())
}

func TestCoalescer_DebounceFiresOnce(t *testing.T) {
	kv := memory.NewKV()
	s := openStore(t, kv)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := s.Write(ctx, preferences.UserInitiated, preferences.Partial{
			preferences.FieldQuestionCount: preferences.Int(i),
		}, s.Current().Version())
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return !s.Coalescer().HasPending()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, kv.Sets())
}

func TestCoalescer_FailureKeepsPendingAndRetries(t *testing.T) {
	kv := memory.NewKV()
	kv.FailSets(2, errors.New("disk full"))
	rep := &recordingReporter{}
	s := openStore(t, kv,
		WithDebounce(time.Hour),
		WithBackoff(10*time.Millisecond, 40*time.Millisecond),
		WithReporter(rep))
	ctx := context.Background()

	_, err := s.Write(ctx, preferences.UserInitiated, preferences.Partial{
		preferences.FieldCategory: preferences.String("fractions"),
	}, 0)
	require.NoError(t, err)

	err = s.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, s.Coalescer().HasPending())
	assert.GreaterOrEqual(t, s.Coalescer().Pending().Attempts, 1)

	// the armed retry fails once more, then succeeds
	require.Eventually(t, func() bool {
		durable, ok := durableSnapshot(t, kv)
		return ok && durable.Category() == "fractions" && !s.Coalescer().HasPending()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, rep.count(preferences.ErrorKindPersistenceFailure))
	assert.Equal(t, 0, s.Coalescer().Pending().Attempts)
	assert.Equal(t, uint64(1), s.Current().Version(), "failed persistence never rolls back memory")
}

func TestCoalescer_CloseFlushesPending(t *testing.T) {
	kv := memory.NewKV()
	s, err := Open(context.Background(), testKey, kv, WithDebounce(time.Hour))
	require.NoError(t, err)

	_, err = s.Write(context.Background(), preferences.UserInitiated, preferences.Partial{
		preferences.FieldRemindersEnabled: preferences.Bool(false),
	}, 0)
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))
	durable, ok := durableSnapshot(t, kv)
	require.True(t, ok)
	assert.False(t, durable.RemindersEnabled())
}

func TestCoalescer_ScheduleAfterCloseIsDropped(t *testing.T) {
	kv := memory.NewKV()
	s, err := Open(context.Background(), testKey, kv)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	s.Coalescer().Schedule(preferences.Defaults().Merge(preferences.Partial{
		preferences.FieldLargeText: preferences.Bool(true),
	}, time.Now()), preferences.Partial{preferences.FieldLargeText: preferences.Bool(true)})

	assert.False(t, s.Coalescer().HasPending())
	assert.Zero(t, kv.Sets())
}

func TestCoalescer_Backoff(t *testing.T) {
	b := newRetryBackoff(time.Second, 30*time.Second)

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, b.NextBackOff(), "retry %d", i+1)
	}

	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())
}

func TestCoalescer_Supersede(t *testing.T) {
	s := openStore(t, memory.NewKV(), WithDebounce(time.Hour))
	c := s.Coalescer()

	_, err := s.Write(context.Background(), preferences.UserInitiated, preferences.Partial{
		preferences.FieldLanguage: preferences.String("de"),
	}, 0)
	require.NoError(t, err)
	require.True(t, c.HasPending())

	assert.False(t, c.Supersede(1), "same version is not superseded")
	assert.True(t, c.HasPending())

	assert.True(t, c.Supersede(2))
	assert.False(t, c.HasPending())
	assert.Empty(t, c.Pending().Fields)
}

func TestStore_Read_AdoptedRecordSupersedesFailedWrite(t *testing.T) {
	kv := memory.NewKV()
	seed(t, kv)
	kv.FailSets(1, errors.New("disk full"))
	clock := newFakeClock()
	c := cache.NewSnapshots(cache.WithTTL(time.Minute), cache.WithClock(clock.Now))
	s := openStore(t, kv,
		WithCache(c),
		WithClock(clock.Now),
		WithDebounce(time.Hour),
		WithBackoff(time.Hour, time.Hour))
	ctx := context.Background()

	_, err := s.Write(ctx, preferences.UserInitiated, preferences.Partial{
		preferences.FieldDifficulty: preferences.Int(3),
	}, 1)
	require.NoError(t, err)
	require.Error(t, s.Flush(ctx))
	require.True(t, s.Coalescer().HasPending())

	// another process wrote a newer record meanwhile
	newer := preferences.NewSnapshot(5, preferences.Partial{
		preferences.FieldCategory: preferences.String("division"),
	}, clock.Now())
	data, err := preferences.EncodeRecord(testKey, newer)
	require.NoError(t, err)
	kv.Put(testKey, data)

	clock.Advance(2 * time.Minute)
	snap, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snap.Version())
	assert.False(t, s.Coalescer().HasPending())

	require.NoError(t, s.Flush(ctx))
	durable, ok := durableSnapshot(t, kv)
	require.True(t, ok)
	assert.Equal(t, uint64(5), durable.Version())
	assert.Equal(t, "division", durable.Category())
}

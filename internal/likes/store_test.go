package likes_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/fahrme/internal/likes"
	"github.com/oggyb/fahrme/internal/logger"
	"github.com/oggyb/fahrme/internal/storage"
)

var post1 = likes.Target{Type: likes.TargetPost, ID: "p1"}

func newStore(t *testing.T, tab storage.Store, opts ...likes.Option) *likes.Store {
	t.Helper()
	opts = append([]likes.Option{likes.WithLogger(logger.Discard())}, opts...)
	return likes.New(context.Background(), tab, opts...)
}

func TestStore_StartsPersistentWhenProbeSucceeds(t *testing.T) {
	tab := storage.NewMemoryArea().Tab()
	s := newStore(t, tab)

	assert.Equal(t, likes.ModePersistent, s.Mode())
	_, err := tab.Get(context.Background(), storage.KeyProbe)
	assert.ErrorIs(t, err, storage.ErrNotFound, "probe key must be cleaned up")
}

func TestStore_LikeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab())

	first, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)
	second, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)

	assert.Equal(t, likes.Status{Liked: true, LikeCount: 1}, first)
	assert.Equal(t, first, second)
}

func TestStore_ToggleTwiceRestoresState(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab())

	_, err := s.InitializeCounters(ctx, post1, 7)
	require.NoError(t, err)

	for _, start := range []bool{false, true} {
		if start {
			_, err := s.Like(ctx, "u1", post1)
			require.NoError(t, err)
		}
		before, err := s.GetStatus(ctx, "u1", post1)
		require.NoError(t, err)

		_, err = s.Toggle(ctx, "u1", post1)
		require.NoError(t, err)
		after, err := s.Toggle(ctx, "u1", post1)
		require.NoError(t, err)

		assert.Equal(t, before, after, "start liked=%v", start)
	}
}

func TestStore_CounterNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab())

	for i := 0; i < 3; i++ {
		st, err := s.Unlike(ctx, "u1", post1)
		require.NoError(t, err)
		assert.Equal(t, likes.Status{}, st)
	}

	_, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)
	_, err = s.Unlike(ctx, "u1", post1)
	require.NoError(t, err)
	st, err := s.Unlike(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, 0, st.LikeCount)
}

func TestStore_UnlikeClampsAtZero(t *testing.T) {
	ctx := context.Background()
	tab := storage.NewMemoryArea().Tab()
	s := newStore(t, tab)

	_, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)

	// another tab resets the counter while the membership stays
	require.NoError(t, tab.Set(ctx, storage.KeyLikeCounts, `{"POST:p1":0}`))

	st, err := s.Unlike(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: false, LikeCount: 0}, st)
}

func TestStore_InitializeCountersSeedsOnce(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab())

	st, err := s.InitializeCounters(ctx, post1, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, st.LikeCount)

	st, err = s.InitializeCounters(ctx, post1, 10)
	require.NoError(t, err)
	assert.Equal(t, 50, st.LikeCount)

	got, err := s.GetStatus(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: false, LikeCount: 50}, got)
}

func TestStore_SeededCounterIsIndependentOfMembership(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab())

	_, err := s.InitializeCounters(ctx, post1, 50)
	require.NoError(t, err)
	st, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 51}, st)

	// seeding after organic likes is ignored
	st, err = s.InitializeCounters(ctx, post1, 3)
	require.NoError(t, err)
	assert.Equal(t, 51, st.LikeCount)
}

func TestStore_RateLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := newStore(t, storage.NewMemoryArea().Tab(),
		likes.WithRateLimit(3, time.Minute),
		likes.WithClock(func() time.Time { return now }),
	)

	for i := 0; i < 3; i++ {
		st, err := s.Like(ctx, "u1", likes.Target{Type: likes.TargetPost, ID: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
		assert.True(t, st.Liked)
	}

	limited := likes.Target{Type: likes.TargetPost, ID: "p-over"}
	st, err := s.Like(ctx, "u1", limited)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{}, st)

	// another user has their own window
	st, err = s.Like(ctx, "u2", limited)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 1}, st)

	// reads are never limited
	st, err = s.GetStatus(ctx, "u1", limited)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: false, LikeCount: 1}, st)

	// the window slides
	now = now.Add(time.Minute + time.Second)
	st, err = s.Like(ctx, "u1", limited)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 2}, st)
}

func TestStore_TwoUsersScenario(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab())

	st, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 1}, st)

	st, err = s.Like(ctx, "u2", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 2}, st)

	st, err = s.GetStatus(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 2}, st)

	st, err = s.Unlike(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: false, LikeCount: 1}, st)
}

func TestStore_SharedAcrossTabs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	area := storage.NewMemoryArea()
	tab1, tab2 := area.Tab(), area.Tab()
	s1, s2 := newStore(t, tab1), newStore(t, tab2)

	changes, err := tab2.Watch(ctx)
	require.NoError(t, err)

	_, err = s1.Like(ctx, "u1", post1)
	require.NoError(t, err)

	// tab2 is told, then pulls
	seen := false
	deadline := time.After(2 * time.Second)
	for !seen {
		select {
		case c := <-changes:
			seen = c.Key == storage.KeyLikes && c.Synthetic
		case <-deadline:
			t.Fatal("no like change signal")
		}
	}
	st, err := s2.GetStatus(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 1}, st)
}

func TestStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab())

	_, err := s.Like(ctx, "", post1)
	assert.ErrorIs(t, err, likes.ErrUnauthenticated)
	_, err = s.Like(ctx, "u1", likes.Target{Type: "BIKE", ID: "x"})
	assert.ErrorIs(t, err, likes.ErrInvalidTarget)
	_, err = s.InitializeCounters(ctx, likes.Target{Type: likes.TargetCar}, 1)
	assert.ErrorIs(t, err, likes.ErrInvalidTarget)
}

func TestStore_FallsBackWhenProbeFails(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	area.SetUnavailable(true)
	s := newStore(t, area.Tab(), likes.WithRateLimit(1, time.Hour))
	require.Equal(t, likes.ModeMemory, s.Mode())

	// storage comes back, the store does not look again
	area.SetUnavailable(false)

	st, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 1}, st)

	// rate limit is bypassed in memory mode
	st, err = s.Like(ctx, "u1", likes.Target{Type: likes.TargetAlbum, ID: "a1"})
	require.NoError(t, err)
	assert.True(t, st.Liked)

	st, err = s.Unlike(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: false, LikeCount: 0}, st)

	assert.Equal(t, likes.ModeMemory, s.Mode())
	keys, err := area.Tab().Keys(ctx, storage.Prefix)
	require.NoError(t, err)
	assert.Empty(t, keys, "memory mode must not touch durable storage")
}

func TestStore_FallsBackOnCorruptData(t *testing.T) {
	ctx := context.Background()
	tab := storage.NewMemoryArea().Tab()
	s := newStore(t, tab)

	_, err := s.Like(ctx, "u1", post1)
	require.NoError(t, err)

	require.NoError(t, tab.Set(ctx, storage.KeyLikes, "{corrupt"))

	st, err := s.GetStatus(ctx, "u1", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.ModeMemory, s.Mode())
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 1}, st, "memory continues from the last good state")

	st, err = s.Like(ctx, "u2", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 2}, st)
}

func TestStore_FallsBackOnQuota(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea(storage.WithQuota(64)).Tab(), likes.WithRateLimit(0, 0))

	for i := 0; i < 5; i++ {
		_, err := s.Like(ctx, "u1", likes.Target{Type: likes.TargetComment, ID: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
	}
	assert.Equal(t, likes.ModeMemory, s.Mode())

	targets, err := s.LikedTargets(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, targets, 5)
}

func TestStore_LikedTargetsAreCachedPerUser(t *testing.T) {
	ctx := context.Background()
	tab := storage.NewMemoryArea().Tab()
	s := newStore(t, tab)

	_, err := s.Like(ctx, "u1", likes.Target{Type: likes.TargetCar, ID: "c1"})
	require.NoError(t, err)

	var cached []likes.Target
	require.NoError(t, storage.GetJSON(ctx, tab, storage.InteractionsKey("u1"), &cached))
	assert.Equal(t, []likes.Target{{Type: likes.TargetCar, ID: "c1"}}, cached)
}

func TestStore_ConcurrentLikesKeepCount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryArea().Tab(), likes.WithRateLimit(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Like(ctx, fmt.Sprintf("u%d", i), post1)
		}(i)
	}
	wg.Wait()

	st, err := s.GetStatus(ctx, "u0", post1)
	require.NoError(t, err)
	assert.Equal(t, likes.Status{Liked: true, LikeCount: 20}, st)
}

func TestParseTargetType(t *testing.T) {
	tt, err := likes.ParseTargetType(" post ")
	require.NoError(t, err)
	assert.Equal(t, likes.TargetPost, tt)

	_, err = likes.ParseTargetType("bike")
	assert.True(t, errors.Is(err, likes.ErrInvalidTarget))
}

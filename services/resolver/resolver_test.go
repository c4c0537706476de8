package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"staticcurator/models"
)

type upstreamFunc func(ctx context.Context, tmdbID int64) (string, error)

func (f upstreamFunc) ResolveExternalID(ctx context.Context, tmdbID int64) (string, error) {
	return f(ctx, tmdbID)
}

func rawItems(n int) []models.RawItem {
	items := make([]models.RawItem, n)
	for i := range items {
		items[i] = models.RawItem{UpstreamID: int64(i + 1), Title: fmt.Sprintf("Movie %d", i+1)}
	}
	return items
}

func imdbFor(id int64) string { return fmt.Sprintf("tt%07d", id) }

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func TestResolvePauseCount(t *testing.T) {
	cases := []struct {
		length, chunk, pauses int
	}{
		{0, 20, 0},
		{1, 20, 0},
		{20, 20, 0},
		{21, 20, 1},
		{40, 20, 1},
		{41, 20, 2},
		{7, 3, 2},
		{5, 1, 4},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("L%d_C%d", tc.length, tc.chunk), func(t *testing.T) {
			sleeper := &recordingSleeper{}
			r := New(upstreamFunc(func(_ context.Context, id int64) (string, error) {
				return imdbFor(id), nil
			}), Policy{ChunkSize: tc.chunk, Delay: 5 * time.Second}, WithSleeper(sleeper.sleep))

			res, err := r.Resolve(context.Background(), rawItems(tc.length))
			require.NoError(t, err)
			assert.Equal(t, tc.pauses, res.Pauses)
			assert.Len(t, sleeper.delays, tc.pauses)
			for _, d := range sleeper.delays {
				assert.Equal(t, 5*time.Second, d)
			}
			assert.Len(t, res.IDs, tc.length)
			assert.Len(t, res.Results, tc.length)
		})
	}
}

func TestResolvePreservesInputOrder(t *testing.T) {
	r := New(upstreamFunc(func(_ context.Context, id int64) (string, error) {
		// Later items finish first.
		time.Sleep(time.Duration(10-id%10) * time.Millisecond)
		return imdbFor(id), nil
	}), ZeroDelay(4))

	items := rawItems(10)
	res, err := r.Resolve(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, res.Results, len(items))
	for i, result := range res.Results {
		assert.Equal(t, items[i].UpstreamID, result.UpstreamID)
		assert.Equal(t, imdbFor(items[i].UpstreamID), result.ExternalID)
	}
}

func TestResolveFaultIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := NewMockUpstream(ctrl)

	boom := errors.New("boom")
	for _, id := range []int64{1, 2, 4, 5, 6} {
		upstream.EXPECT().ResolveExternalID(gomock.Any(), id).Return(imdbFor(id), nil)
	}
	upstream.EXPECT().ResolveExternalID(gomock.Any(), int64(3)).Return("", boom)

	res, err := New(upstream, ZeroDelay(2)).Resolve(context.Background(), rawItems(6))
	require.NoError(t, err)

	assert.Len(t, res.IDs, 5)
	_, ok := res.IDs[3]
	assert.False(t, ok, "failed lookups must not appear in the mapping")

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(3), failed[0].UpstreamID)
	assert.ErrorIs(t, failed[0].Err, boom)
}

func TestResolveIsolatesPanickingLookup(t *testing.T) {
	r := New(upstreamFunc(func(_ context.Context, id int64) (string, error) {
		if id == 2 {
			panic("decoder exploded")
		}
		return imdbFor(id), nil
	}), ZeroDelay(3))

	res, err := r.Resolve(context.Background(), rawItems(3))
	require.NoError(t, err)

	assert.Equal(t, map[int64]string{1: imdbFor(1), 3: imdbFor(3)}, res.IDs)
	require.Len(t, res.Results, 3)
	assert.False(t, res.Results[1].OK())
	assert.ErrorContains(t, res.Results[1].Err, "decoder exploded")
}

func TestResolveTreatsEmptyIDAsFailure(t *testing.T) {
	r := New(upstreamFunc(func(_ context.Context, id int64) (string, error) {
		if id == 2 {
			return "", nil
		}
		return imdbFor(id), nil
	}), ZeroDelay(20))

	res, err := r.Resolve(context.Background(), rawItems(3))
	require.NoError(t, err)
	assert.Len(t, res.IDs, 2)
	assert.False(t, res.Results[1].OK())
}

func TestResolveBoundsConcurrencyToChunk(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	r := New(upstreamFunc(func(_ context.Context, id int64) (string, error) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return imdbFor(id), nil
	}), ZeroDelay(3))

	_, err := r.Resolve(context.Background(), rawItems(10))
	require.NoError(t, err)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	assert.GreaterOrEqual(t, maxInFlight.Load(), int32(1))
}

func TestResolveStopsWhenCancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	r := New(upstreamFunc(func(_ context.Context, id int64) (string, error) {
		calls.Add(1)
		return imdbFor(id), nil
	}), Policy{ChunkSize: 2, Delay: time.Hour}, WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	res, err := r.Resolve(ctx, rawItems(6))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, res.IDs, 2)
	assert.Equal(t, 0, res.Pauses)
}

func TestResolveUsesIDCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	cache := NewIDCache(fs, "/cache/ids", 24)
	require.NoError(t, cache.Set(1, "tt0000001"))

	ctrl := gomock.NewController(t)
	upstream := NewMockUpstream(ctrl)
	upstream.EXPECT().ResolveExternalID(gomock.Any(), int64(2)).Return("tt0000002", nil).Times(1)
	upstream.EXPECT().ResolveExternalID(gomock.Any(), int64(3)).Return("", errors.New("not found")).Times(1)

	res, err := New(upstream, ZeroDelay(20), WithCache(cache)).Resolve(context.Background(), rawItems(3))
	require.NoError(t, err)
	assert.True(t, res.Results[0].Cached)
	assert.Equal(t, map[int64]string{1: "tt0000001", 2: "tt0000002"}, res.IDs)

	id, ok := cache.Get(2)
	require.True(t, ok, "successful lookups are cached")
	assert.Equal(t, "tt0000002", id)
	_, ok = cache.Get(3)
	assert.False(t, ok, "failures are never cached")
}

func TestNewClampsPolicy(t *testing.T) {
	r := New(upstreamFunc(func(context.Context, int64) (string, error) { return "", nil }), Policy{ChunkSize: 0, Delay: -time.Second})
	assert.Equal(t, Policy{ChunkSize: 1, Delay: 0}, r.Policy())
}

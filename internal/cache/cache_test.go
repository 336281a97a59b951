package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_GetRespectsTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string]("test", 5*time.Minute, clock.Now)

	c.Set("k", "v")

	clock.Advance(4*time.Minute + 59*time.Second)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should be stale after ttl")
}

func TestCache_GetOrLoadCachesSuccessOnly(t *testing.T) {
	c := New[int]("test", time.Minute, nil)
	ctx := context.Background()

	_, _, err := c.GetOrLoad(ctx, "k", func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len(), "failed loads must not be cached")

	v, hit, err := c.GetOrLoad(ctx, "k", func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)

	v, hit, err = c.GetOrLoad(ctx, "k", func(ctx context.Context) (int, error) {
		return 8, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, v)
}

func TestCache_GetOrLoadCoalescesConcurrentMisses(t *testing.T) {
	c := New[int]("test", time.Minute, nil)
	var calls int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_GetOrLoadOutlivesCancelledCaller(t *testing.T) {
	c := New[int]("test", time.Minute, nil)
	release := make(chan struct{})
	var loadCancelled int32

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.GetOrLoad(ctx, "k", func(ctx context.Context) (int, error) {
		<-release
		if ctx.Err() != nil {
			atomic.StoreInt32(&loadCancelled, 1)
		}
		return 5, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&loadCancelled))

	v, hit, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 9, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 5, v)
}

func TestCache_GetOrLoadDoesNotKeepTimedOutLoads(t *testing.T) {
	c := New[int]("test", time.Minute, nil).WithLoadTimeout(20 * time.Millisecond)

	v, hit, err := c.GetOrLoad(context.Background(), "k", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 3, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, v)
	assert.Equal(t, 0, c.Len(), "loads cut off by the timeout must not be cached")
}

func TestCache_SweepRemovesOnlyExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string]("test", time.Minute, clock.Now)

	c.Set("old", "a")
	clock.Advance(45 * time.Second)
	c.Set("fresh", "b")
	clock.Advance(30 * time.Second)

	removed := c.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCache_SetReplacesEntry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[[]int]("test", time.Minute, clock.Now)

	first := []int{1, 2}
	c.Set("k", first)
	clock.Advance(10 * time.Second)
	c.Set("k", []int{3})

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, clock.Now(), snap[0].LastFetch)
	assert.Equal(t, []int{1, 2}, first, "previous value must not be mutated")
}

func TestCache_Clear(t *testing.T) {
	c := New[int]("test", time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

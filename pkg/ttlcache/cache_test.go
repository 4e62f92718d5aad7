package ttlcache

import (
	"context"
	"sort"
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

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func newTestCache(clk *fakeClock) *Cache[string, string] {
	return New(
		WithTTL[string, string](DefaultTTL),
		WithNowFunc[string, string](clk.Now),
	)
}

func TestCache_GetPut(t *testing.T) {
	t.Parallel()
	c := newTestCache(newFakeClock())

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("session-1", "OVO000001")
	v, ok := c.Get("session-1")
	require.True(t, ok)
	assert.Equal(t, "OVO000001", v)

	c.Put("session-1", "OVO000002")
	v, ok = c.Get("session-1")
	require.True(t, ok)
	assert.Equal(t, "OVO000002", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_TTLBoundary(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := newTestCache(clk)

	c.Put("session-1", "OVO000001")

	clk.Advance(DefaultTTL - time.Second)
	v, ok := c.Get("session-1")
	require.True(t, ok, "entry must be served just before the TTL elapses")
	assert.Equal(t, "OVO000001", v)

	clk.Advance(2 * time.Second)
	_, ok = c.Get("session-1")
	assert.False(t, ok, "entry must not be served after the TTL elapsed")
}

func TestCache_ExactlyAtTTLIsExpired(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := newTestCache(clk)

	c.Put("k", "v")
	clk.Advance(DefaultTTL)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Sweep())
}

func TestCache_PutResetsAge(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := newTestCache(clk)

	c.Put("k", "v1")
	clk.Advance(DefaultTTL - time.Minute)
	c.Put("k", "v2")
	clk.Advance(2 * time.Minute)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestCache_Sweep(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := newTestCache(clk)

	c.Put("old-1", "a")
	c.Put("old-2", "b")
	clk.Advance(20 * time.Hour)
	c.Put("young", "c")
	clk.Advance(5 * time.Hour)

	removed := c.Sweep()
	assert.Equal(t, 2, removed)

	keys := c.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"young"}, keys)
}

func TestCache_BackgroundSweep(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	var passes atomic.Int32
	c := New(
		WithTTL[string, int](time.Hour),
		WithSweepInterval[string, int](10*time.Millisecond),
		WithNowFunc[string, int](clk.Now),
		WithSweepHook[string, int](func(int) { passes.Add(1) }),
	)
	c.Put("stale", 1)
	clk.Advance(2 * time.Hour)
	c.Put("fresh", 2)

	c.Start(context.Background())
	defer c.Stop()

	assert.Eventually(t, func() bool {
		keys := c.Keys()
		return len(keys) == 1 && keys[0] == "fresh"
	}, time.Second, 5*time.Millisecond)
	assert.Positive(t, passes.Load())
}

func TestCache_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	c := New[string, string](WithSweepInterval[string, string](time.Millisecond))
	c.Start(context.Background())
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}

func TestCache_StartExitsOnContextCancel(t *testing.T) {
	t.Parallel()
	c := New[string, string](WithSweepInterval[string, string](time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not exit after context cancellation")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := New[int, int](WithSweepInterval[int, int](time.Millisecond))
	c.Start(context.Background())
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Put(j, i)
				c.Get(j)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 200, c.Len())
}

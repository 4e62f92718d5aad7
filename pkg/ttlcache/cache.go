// Package ttlcache provides a keyed store whose entries expire after a fixed
// duration and are periodically swept by a background goroutine.
package ttlcache

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache maps K to V. An entry is served while now-storedAt < ttl.
type Cache[K comparable, V any] struct {
	mu       sync.RWMutex
	entries  map[K]entry[V]
	ttl      time.Duration
	interval time.Duration
	nowFunc  func() time.Time
	onSweep  func(removed int)

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

type Option[K comparable, V any] func(*Cache[K, V])

func WithTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithSweepInterval[K comparable, V any](d time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithNowFunc replaces the clock, mainly for tests.
func WithNowFunc[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		if now != nil {
			c.nowFunc = now
		}
	}
}

// WithSweepHook is called after every background sweep pass with the number of removed entries.
func WithSweepHook[K comparable, V any](fn func(removed int)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onSweep = fn }
}

func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:  map[K]entry[V]{},
		ttl:      DefaultTTL,
		interval: DefaultSweepInterval,
		nowFunc:  time.Now,
		stopCh:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache[K, V]) TTL() time.Duration { return c.ttl }

// Get returns the value for k if present and younger than the TTL.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok || c.expired(e, c.nowFunc()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores v under k, replacing any previous entry and resetting its age.
func (c *Cache[K, V]) Put(k K, v V) {
	now := c.nowFunc()
	c.mu.Lock()
	c.entries[k] = entry[V]{value: v, storedAt: now}
	c.mu.Unlock()
}

// Sweep removes every entry whose age is at least the TTL and returns how many were removed.
func (c *Cache[K, V]) Sweep() int {
	now := c.nowFunc()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Keys lists the stored keys, including entries that expired but were not swept yet.
func (c *Cache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]K, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start launches the background sweeper. It exits when ctx is done or Stop is called.
// Calling Start more than once has no effect.
func (c *Cache[K, V]) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.sweepLoop(ctx)
	})
}

// Stop halts the sweeper and waits for it to exit. Safe to call multiple times.
func (c *Cache[K, V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Cache[K, V]) sweepLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n := c.Sweep()
			if c.onSweep != nil {
				c.onSweep(n)
			}
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Cache[K, V]) expired(e entry[V], now time.Time) bool {
	return now.Sub(e.storedAt) >= c.ttl
}

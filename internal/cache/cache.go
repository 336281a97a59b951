// Package cache provides a small in-memory TTL cache with replace-on-write entries
// and request coalescing for concurrent misses.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is an immutable cached value. Refreshes replace the entry, they never mutate it.
type Entry[T any] struct {
	Data      T
	Expiry    time.Time
	LastFetch time.Time
}

// Meta describes a cached entry without exposing its type
type Meta struct {
	Cache     string
	Key       string
	Expiry    time.Time
	LastFetch time.Time
	Data      interface{}
}

// Cache is a keyed TTL cache safe for concurrent use
type Cache[T any] struct {
	name        string
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	mu          sync.RWMutex
	entries     map[string]*Entry[T]
	group       singleflight.Group
}

// New creates a cache whose entries live for ttl. A nil clock defaults to time.Now.
func New[T any](name string, ttl time.Duration, now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{
		name:    name,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]*Entry[T]),
	}
}

// WithLoadTimeout bounds every load started by GetOrLoad. Zero leaves loads unbounded.
func (c *Cache[T]) WithLoadTimeout(d time.Duration) *Cache[T] {
	if d > 0 {
		c.loadTimeout = d
	}
	return c
}

// Name returns the cache name used in logs and metrics
func (c *Cache[T]) Name() string {
	return c.name
}

// TTL returns the configured time-to-live
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value for key while it has not expired
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.Expiry) {
		var zero T
		return zero, false
	}
	return entry.Data, true
}

// Set stores value under key, replacing any previous entry
func (c *Cache[T]) Set(key string, value T) {
	now := c.now()
	entry := &Entry[T]{
		Data:      value,
		Expiry:    now.Add(c.ttl),
		LastFetch: now,
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// GetOrLoad returns the cached value for key or runs load once for all concurrent callers.
// The boolean reports whether the value came from the cache. Failed loads are not cached.
//
// The load runs detached from ctx so one caller going away cannot degrade the value the
// others share. A caller whose ctx ends first gets ctx.Err() while the load carries on.
// A load that overruns the load timeout is returned but not cached.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, bool, error) {
	if value, ok := c.Get(key); ok {
		return value, true, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// another caller may have filled the entry while we waited on the group
		if value, ok := c.Get(key); ok {
			return value, nil
		}

		loadCtx, cancel := c.loadContext(ctx)
		defer cancel()

		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if loadCtx.Err() == nil {
			c.Set(key, value)
		}
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		value, ok := res.Val.(T)
		if !ok {
			return zero, false, fmt.Errorf("cache %s: unexpected value type %T", c.name, res.Val)
		}
		return value, false, nil
	}
}

func (c *Cache[T]) loadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if c.loadTimeout > 0 {
		return context.WithTimeout(detached, c.loadTimeout)
	}
	return context.WithCancel(detached)
}

// Delete removes key
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

// Clear removes every entry
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.entries = make(map[string]*Entry[T])
	c.mu.Unlock()

	for _, key := range keys {
		c.group.Forget(key)
	}
}

// Sweep deletes expired entries and returns how many were removed.
// An entry replaced after the sweep started is checked against its own expiry.
func (c *Cache[T]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.Expiry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns metadata for every stored entry ordered by key
func (c *Cache[T]) Snapshot() []Meta {
	c.mu.RLock()
	metas := make([]Meta, 0, len(c.entries))
	for key, entry := range c.entries {
		metas = append(metas, Meta{
			Cache:     c.name,
			Key:       key,
			Expiry:    entry.Expiry,
			LastFetch: entry.LastFetch,
			Data:      entry.Data,
		})
	}
	c.mu.RUnlock()

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Key < metas[j].Key
	})
	return metas
}

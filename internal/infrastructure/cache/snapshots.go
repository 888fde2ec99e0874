// Package cache holds a short-lived, non-authoritative copy of preference
// snapshots so cold reads do not hit the durable store every time.
package cache

import (
	"sync"
	"time"

	"math-learning-bot/internal/domain/preferences"
)

// DefaultTTL is short; the canonical snapshot lives in the preference store.
const DefaultTTL = 5 * time.Minute

// Entry is one cached snapshot.
type Entry struct {
	Value    preferences.Snapshot
	CachedAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still within its TTL at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Sub(e.CachedAt) <= e.TTL
}

// Snapshots is a TTL cache keyed by user key.
type Snapshots struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures Snapshots.
type Option func(*Snapshots)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Snapshots) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Snapshots) {
		if now != nil {
			c.now = now
		}
	}
}

// NewSnapshots creates an empty cache
func NewSnapshots(opts ...Option) *Snapshots {
	c := &Snapshots{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Snapshots) TTL() time.Duration { return c.ttl }

// Get returns the cached snapshot while it is fresh. A false result is a miss
// and tells the caller to refresh from the durable store.
func (c *Snapshots) Get(key string) (preferences.Snapshot, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !entry.Fresh(c.now()) {
		return preferences.Snapshot{}, false
	}
	return entry.Value, true
}

// Peek returns the entry regardless of freshness.
func (c *Snapshots) Peek(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Put stores snapshot with a fresh timestamp.
func (c *Snapshots) Put(key string, snapshot preferences.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Value: snapshot, CachedAt: c.now(), TTL: c.ttl}
}

// Invalidate drops the entry for key.
func (c *Snapshots) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

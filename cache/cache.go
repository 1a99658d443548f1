// Package cache provides the two-tier key/value store used by the analysis
// engine: a process-local tier guarded by a mutex plus an optional shared
// tier. Entries never outlive their TTL, even when read.
package cache

import (
	"sync"
	"time"
)

// SharedStore is the optional second tier, typically a networked store
// shared between workers. The in-process default below stands in when no
// shared backend is configured.
type SharedStore interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
	Clear()
}

type entry struct {
	value   string
	expires time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Cache is safe for concurrent use; writes are last-write-wins.
type Cache struct {
	mu         sync.Mutex
	local      map[string]entry
	shared     SharedStore
	promoteTTL time.Duration

	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithShared attaches a shared second tier.
func WithShared(s SharedStore) Option {
	return func(c *Cache) { c.shared = s }
}

// WithPromoteTTL bounds how long a shared-tier hit lives in the local tier.
func WithPromoteTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.promoteTTL = ttl }
}

// WithClock overrides the time source, used by tests to step past TTLs.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		local:      make(map[string]entry),
		promoteTTL: 5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, or ok=false if absent or expired.
// Expired local entries are evicted on read.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	if e, ok := c.local[key]; ok {
		if !e.expired(c.now()) {
			c.mu.Unlock()
			return e.value, true
		}
		delete(c.local, key)
	}
	c.mu.Unlock()

	if c.shared == nil {
		return "", false
	}
	value, ok := c.shared.Get(key)
	if !ok {
		return "", false
	}

	// Promote into the local tier with a short TTL so hot keys stay cheap.
	c.mu.Lock()
	c.local[key] = entry{value: value, expires: c.now().Add(c.promoteTTL)}
	c.mu.Unlock()
	return value, true
}

// Set stores value under key in both tiers. A non-positive ttl stores the
// entry without expiry.
func (c *Cache) Set(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.local[key] = e
	c.mu.Unlock()

	if c.shared != nil {
		c.shared.Set(key, value, ttl)
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()

	if c.shared != nil {
		c.shared.Delete(key)
	}
}

// Clear empties both tiers.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.local = make(map[string]entry)
	c.mu.Unlock()

	if c.shared != nil {
		c.shared.Clear()
	}
}

// Sweep evicts expired local entries and returns how many were removed.
// The maintenance lane runs this periodically.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.local {
		if e.expired(now) {
			delete(c.local, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live local entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, e := range c.local {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// MemoryShared is an in-process SharedStore, the degraded mode used when no
// networked cache backend is configured.
type MemoryShared struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryShared creates an empty in-process shared tier.
func NewMemoryShared() *MemoryShared {
	return &MemoryShared{entries: make(map[string]entry), now: time.Now}
}

func (m *MemoryShared) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return "", false
	}
	return e.value, true
}

func (m *MemoryShared) Set(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *MemoryShared) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *MemoryShared) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
}

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// stepClock is a manual time source for stepping past TTLs.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheRoundTrip(t *testing.T) {
	clock := newStepClock()
	c := New(WithClock(clock.Now))

	c.Set("k", "v", time.Hour)

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get after Set: got %q, %v; want \"v\", true", got, ok)
	}
}

func TestCacheEntryExpiresAfterTTL(t *testing.T) {
	clock := newStepClock()
	c := New(WithClock(clock.Now))

	c.Set("k", "v", time.Hour)
	clock.Advance(time.Hour + time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("entry should be absent after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("Len after expiry: got %d, want 0", c.Len())
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	clock := newStepClock()
	c := New(WithClock(clock.Now))

	c.Set("k", "v", 0)
	clock.Advance(240 * time.Hour)

	if _, ok := c.Get("k"); !ok {
		t.Error("entry with no TTL should survive")
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := New()
	c.Set("a", "1", time.Hour)
	c.Set("b", "2", time.Hour)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key should be absent")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("cleared cache should be empty")
	}
}

func TestCacheSharedTierPromotion(t *testing.T) {
	shared := NewMemoryShared()
	c := New(WithShared(shared), WithPromoteTTL(time.Minute))

	// Simulate another worker writing to the shared tier only.
	shared.Set("k", "from-shared", time.Hour)

	got, ok := c.Get("k")
	if !ok || got != "from-shared" {
		t.Fatalf("shared-tier read: got %q, %v", got, ok)
	}

	// The hit must now be served locally even if the shared tier loses it.
	shared.Delete("k")
	got, ok = c.Get("k")
	if !ok || got != "from-shared" {
		t.Errorf("promoted entry should be served from the local tier, got %q, %v", got, ok)
	}
}

func TestCacheSweepEvictsExpired(t *testing.T) {
	clock := newStepClock()
	c := New(WithClock(clock.Now))

	c.Set("old", "1", time.Minute)
	c.Set("fresh", "2", time.Hour)
	clock.Advance(2 * time.Minute)

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d entries, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("Sweep must not evict live entries")
	}
}

func TestCacheConcurrentLastWriteWins(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Set("k", fmt.Sprintf("v%d", n), time.Hour)
			c.Get("k")
		}(i)
	}
	wg.Wait()

	if _, ok := c.Get("k"); !ok {
		t.Error("key should be present after concurrent writes")
	}
}

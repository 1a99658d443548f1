package utils

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDedupeSetNoDuplicates(t *testing.T) {
	s := NewDedupeSet()

	added := s.Add("blue bottle coffee")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("blue bottle coffee")
	if added {
		t.Error("second Add of same key should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestDedupeSetConcurrency(t *testing.T) {
	s := NewDedupeSet()
	var added int64

	pool := NewWorkerPool(10, 0)
	for i := 0; i < 100; i++ {
		key := "same business"
		pool.Submit(func() {
			if s.Add(key) {
				atomic.AddInt64(&added, 1)
			}
		})
	}
	pool.Wait()

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimitMs := 100
	pool := NewWorkerPool(1, rateLimitMs)

	var timestamps []time.Time
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			<-mu
			timestamps = append(timestamps, time.Now())
			mu <- struct{}{}
		})
	}
	pool.Wait()

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		min := time.Duration(rateLimitMs) * time.Millisecond
		if gap < min {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestWorkerPoolTrySubmit(t *testing.T) {
	pool := NewWorkerPool(1, 0)

	release := make(chan struct{})
	pool.Submit(func() { <-release })

	// Give the worker time to take the slot.
	time.Sleep(20 * time.Millisecond)

	if pool.TrySubmit(func() {}) {
		t.Error("TrySubmit should fail while the only worker is busy")
	}

	close(release)
	pool.Wait()

	if !pool.TrySubmit(func() {}) {
		t.Error("TrySubmit should succeed once a worker is free")
	}
	pool.Wait()
}

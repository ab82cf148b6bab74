package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newWithClock(3, 1, clock.Now)

	for i := range 3 {
		if !l.Allow() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow() {
		t.Fatal("fourth request should be rejected")
	}

	clock.Advance(time.Second)
	if !l.Allow() {
		t.Error("one token should have refilled after 1s")
	}
	if l.Allow() {
		t.Error("only one token should have refilled")
	}
}

func TestLimiter_RefillCapsAtMax(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := newWithClock(2, 10, clock.Now)
	l.Allow()
	l.Allow()

	clock.Advance(time.Hour)
	if got := l.Available(); got != 2 {
		t.Errorf("Available() = %v, want 2", got)
	}
	if !l.IsFull() {
		t.Error("bucket should be full")
	}
}

func TestLimiter_CheckConsume(t *testing.T) {
	t.Parallel()

	l := newWithClock(1, 0, newFakeClock().Now)
	if !l.Check() {
		t.Fatal("Check() should pass on a full bucket")
	}
	if !l.Check() {
		t.Fatal("Check() must not consume")
	}
	l.Consume()
	if l.Check() {
		t.Error("bucket should be empty after Consume()")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	l := newWithClock(50, 0, newFakeClock().Now)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 200 {
		wg.Go(func() {
			if l.Allow() {
				allowed.Add(1)
			}
		})
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d requests, want exactly 50", got)
	}
}

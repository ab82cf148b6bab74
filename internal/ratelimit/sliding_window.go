package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter enforces "at most N requests per window" using the
// sliding window counter approximation: the previous fixed window's count is
// weighted by how much of it still overlaps the sliding window.
//
//	effective = current + previous * (window - elapsedInCurrent) / window
//
// A nil counter is disabled and admits everything.
type SlidingWindowCounter struct {
	mu          sync.Mutex
	currCount   int
	prevCount   int
	currStart   time.Time
	window      time.Duration
	maxRequests int
	now         func() time.Time
}

// NewSlidingWindowCounter returns a counter admitting maxRequests per window,
// or nil when maxRequests <= 0.
func NewSlidingWindowCounter(maxRequests int, window time.Duration) *SlidingWindowCounter {
	return newSlidingWindowWithClock(maxRequests, window, time.Now)
}

func newSlidingWindowWithClock(maxRequests int, window time.Duration, now func() time.Time) *SlidingWindowCounter {
	if maxRequests <= 0 || window <= 0 {
		return nil
	}
	return &SlidingWindowCounter{
		currStart:   now(),
		window:      window,
		maxRequests: maxRequests,
		now:         now,
	}
}

// Allow admits and counts a request if the quota permits.
func (s *SlidingWindowCounter) Allow() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.effectiveLocked() >= float64(s.maxRequests) {
		return false
	}
	s.currCount++
	return true
}

// Check reports whether a request would be admitted, without counting it.
func (s *SlidingWindowCounter) Check() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.effectiveLocked() < float64(s.maxRequests)
}

// Consume counts a request previously approved by Check.
func (s *SlidingWindowCounter) Consume() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.effectiveLocked() < float64(s.maxRequests) {
		s.currCount++
	}
}

// Remaining returns the approximate number of requests still admitted, or -1 when disabled.
func (s *SlidingWindowCounter) Remaining() int {
	if s == nil {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := float64(s.maxRequests) - s.effectiveLocked()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// Idle reports whether no request falls within the sliding window any more.
func (s *SlidingWindowCounter) Idle() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.effectiveLocked() == 0
}

// effectiveLocked rotates windows as needed and returns the weighted count.
// Must be called with mu held.
func (s *SlidingWindowCounter) effectiveLocked() float64 {
	elapsed := s.now().Sub(s.currStart)
	if elapsed >= s.window {
		passed := int(elapsed / s.window)
		if passed == 1 {
			s.prevCount = s.currCount
		} else {
			s.prevCount = 0
		}
		s.currCount = 0
		s.currStart = s.currStart.Add(time.Duration(passed) * s.window)
		elapsed = s.now().Sub(s.currStart)
	}

	overlap := float64(s.window-elapsed) / float64(s.window)
	overlap = max(0, min(1, overlap))
	return float64(s.currCount) + float64(s.prevCount)*overlap
}

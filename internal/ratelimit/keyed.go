package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/college-predictor-go/internal/metrics"
)

// KeyedConfig configures a KeyedLimiter instance.
type KeyedConfig struct {
	// Name identifies this limiter in metrics (e.g. "client").
	Name string

	// Token bucket burst guard.
	Burst      float64 // Maximum tokens (burst capacity)
	RefillRate float64 // Tokens refilled per second

	// Sliding window quota (0 = disabled), e.g. 100 requests per 15 minutes.
	WindowLimit int
	Window      time.Duration

	// CleanupPeriod is how often idle keys are evicted.
	CleanupPeriod time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// KeyedLimiter tracks rate limits per key (client IP, user ID).
// Each key gets its own bucket and window; idle keys are evicted periodically.
type KeyedLimiter struct {
	mu      sync.RWMutex
	entries map[string]*keyedEntry
	config  KeyedConfig
	stopCh  chan struct{}
	once    sync.Once
}

// keyedEntry's mutex makes the two-layer check-then-consume atomic.
type keyedEntry struct {
	mu     sync.Mutex
	bucket *Limiter
	window *SlidingWindowCounter
}

// NewKeyedLimiter creates a new per-key rate limiter and starts its cleanup loop.
//
//	limiter := NewKeyedLimiter(KeyedConfig{
//	    Name:          "client",
//	    Burst:         20,
//	    RefillRate:    1,
//	    WindowLimit:   100,
//	    Window:        15 * time.Minute,
//	    CleanupPeriod: 5 * time.Minute,
//	})
//	defer limiter.Stop()
func NewKeyedLimiter(cfg KeyedConfig) *KeyedLimiter {
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = 5 * time.Minute
	}
	kl := &KeyedLimiter{
		entries: make(map[string]*keyedEntry),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow reports whether a request for key is admitted, consuming quota if so.
// Both the burst bucket and the window quota must pass. Empty keys are never limited.
func (kl *KeyedLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	entry := kl.getOrCreateEntry(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.window.Check() || (entry.bucket != nil && !entry.bucket.Check()) {
		if kl.config.Metrics != nil {
			kl.config.Metrics.RecordRateLimiterDrop(kl.config.Name)
		}
		return false
	}

	entry.window.Consume()
	if entry.bucket != nil {
		entry.bucket.Consume()
	}
	return true
}

// Remaining returns the window quota left for key, or -1 when the window is disabled.
func (kl *KeyedLimiter) Remaining(key string) int {
	if kl.config.WindowLimit <= 0 {
		return -1
	}

	kl.mu.RLock()
	entry, ok := kl.entries[key]
	kl.mu.RUnlock()
	if !ok {
		return kl.config.WindowLimit
	}
	return entry.window.Remaining()
}

// Limit returns the configured window quota.
func (kl *KeyedLimiter) Limit() int {
	return kl.config.WindowLimit
}

// ActiveCount returns the number of tracked keys.
func (kl *KeyedLimiter) ActiveCount() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.entries)
}

func (kl *KeyedLimiter) getOrCreateEntry(key string) *keyedEntry {
	kl.mu.RLock()
	entry, ok := kl.entries[key]
	kl.mu.RUnlock()
	if ok {
		return entry
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, ok = kl.entries[key]; ok {
		return entry
	}

	entry = &keyedEntry{
		window: NewSlidingWindowCounter(kl.config.WindowLimit, kl.config.Window),
	}
	if kl.config.Burst > 0 {
		entry.bucket = New(kl.config.Burst, kl.config.RefillRate)
	}
	kl.entries[key] = entry
	return entry
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.evictIdle()
		}
	}
}

// evictIdle drops keys whose bucket is full and whose window holds no requests.
func (kl *KeyedLimiter) evictIdle() {
	kl.mu.Lock()
	for key, entry := range kl.entries {
		if (entry.bucket == nil || entry.bucket.IsFull()) && entry.window.Idle() {
			delete(kl.entries, key)
		}
	}
	active := len(kl.entries)
	kl.mu.Unlock()

	if kl.config.Metrics != nil {
		kl.config.Metrics.SetRateLimiterClients(active)
	}
}

// Stop terminates the cleanup goroutine. Safe to call multiple times.
func (kl *KeyedLimiter) Stop() {
	kl.once.Do(func() { close(kl.stopCh) })
}

// ABOUTME: Fixed-window rate limiter with per-key buckets and atomic window reset
// ABOUTME: Explicitly owned instance with injected clock and janitor lifecycle

package quota

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Default rate limiter configuration values.
const (
	DefaultWindow          = time.Minute
	DefaultMaxPerWindow    = 60
	DefaultCleanupInterval = 5 * time.Minute
)

// ErrRateLimited is returned when a key has exhausted its window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Decision is the outcome of a rate-limit check.
type Decision struct {
	// Allowed reports whether the call may proceed.
	Allowed bool

	// Remaining is the number of calls left in the current window.
	Remaining int

	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// RateLimiterConfig configures a fixed-window limiter.
type RateLimiterConfig struct {
	// Window is the fixed window length. Zero uses DefaultWindow.
	Window time.Duration

	// MaxPerWindow is the number of calls allowed per window.
	// Zero uses DefaultMaxPerWindow.
	MaxPerWindow int

	// CleanupInterval is how often stale buckets are pruned when the
	// janitor is running. Zero uses DefaultCleanupInterval.
	CleanupInterval time.Duration

	// Clock overrides the time source for tests. Nil uses time.Now.
	Clock Clock
}

// bucket tracks one key's consumption inside the current window.
type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a fixed-window rate limiter keyed by string.
// Check and increment are a single atomic operation: exactly one of
// two concurrent callers wins the last slot.
type RateLimiter struct {
	mu      sync.Mutex
	config  RateLimiterConfig
	now     Clock
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRateLimiter creates a new fixed-window rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Window == 0 {
		config.Window = DefaultWindow
	}
	if config.MaxPerWindow == 0 {
		config.MaxPerWindow = DefaultMaxPerWindow
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}

	return &RateLimiter{
		config:  config,
		now:     orNow(config.Clock),
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
}

// Allow consumes one slot for the key if available. The window is
// reset atomically once it has elapsed.
func (rl *RateLimiter) Allow(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(rl.config.Window)}
		rl.buckets[key] = b
	}

	if b.count >= rl.config.MaxPerWindow {
		return Decision{Allowed: false, Remaining: 0, ResetAt: b.resetAt}
	}

	b.count++
	return Decision{
		Allowed:   true,
		Remaining: rl.config.MaxPerWindow - b.count,
		ResetAt:   b.resetAt,
	}
}

// Start launches the background janitor that prunes stale buckets.
func (rl *RateLimiter) Start(ctx context.Context) {
	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()

		ticker := time.NewTicker(rl.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-rl.stopCh:
				return
			case <-ticker.C:
				rl.Prune()
			}
		}
	}()
}

// Stop terminates the janitor and waits for it to exit.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
	rl.wg.Wait()
}

// Prune removes buckets whose window has elapsed.
func (rl *RateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

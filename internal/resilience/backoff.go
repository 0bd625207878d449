// ABOUTME: Exponential backoff with jitter for transient provider failures
// ABOUTME: Bounded retries with context-aware waiting

package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// Default backoff configuration values, tuned for short remote calls.
const (
	DefaultMaxRetries     = 2
	DefaultInitialDelay   = 200 * time.Millisecond
	DefaultMaxDelay       = 5 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitterFraction = 0.2
)

// BackoffConfig configures exponential backoff behavior.
type BackoffConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Zero uses DefaultMaxRetries.
	MaxRetries int

	// InitialDelay is the delay after the first failure.
	// Zero uses DefaultInitialDelay.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Zero uses DefaultMaxDelay.
	MaxDelay time.Duration

	// Multiplier grows the delay on each retry. Must be >= 1.0.
	// Zero uses DefaultMultiplier.
	Multiplier float64

	// JitterFraction adds randomness to delays; 0.2 means ±20%.
	// Must be in [0, 1]. Zero disables jitter.
	JitterFraction float64
}

// Validate checks if the configuration is valid.
func (c *BackoffConfig) Validate() error {
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return errors.New("jitter fraction must be between 0 and 1")
	}
	if c.Multiplier != 0 && c.Multiplier < 1 {
		return errors.New("multiplier must be at least 1")
	}
	return nil
}

// applyDefaults fills in zero values with defaults.
func (c *BackoffConfig) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = DefaultMultiplier
	}
}

// DefaultBackoffConfig returns a BackoffConfig with jitter enabled.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxRetries:     DefaultMaxRetries,
		InitialDelay:   DefaultInitialDelay,
		MaxDelay:       DefaultMaxDelay,
		Multiplier:     DefaultMultiplier,
		JitterFraction: DefaultJitterFraction,
	}
}

// Backoff implements exponential backoff with optional jitter.
type Backoff struct {
	mu           sync.Mutex
	config       BackoffConfig
	attempts     int
	currentDelay time.Duration
}

// NewBackoff creates a new Backoff with the given configuration.
// Zero values in config use defaults.
func NewBackoff(config BackoffConfig) *Backoff {
	config.applyDefaults()
	return &Backoff{
		config:       config,
		currentDelay: config.InitialDelay,
	}
}

// NextDelay returns the next delay duration and whether more retries
// are available. Returns (0, false) once max retries is exceeded.
func (b *Backoff) NextDelay() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attempts >= b.config.MaxRetries {
		return 0, false
	}

	delay := b.currentDelay
	if b.config.JitterFraction > 0 {
		delay = b.applyJitter(delay)
	}

	b.attempts++
	nextDelay := time.Duration(float64(b.currentDelay) * b.config.Multiplier)
	if nextDelay > b.config.MaxDelay {
		nextDelay = b.config.MaxDelay
	}
	b.currentDelay = nextDelay

	return delay, true
}

// applyJitter adds random variation to the delay.
func (b *Backoff) applyJitter(delay time.Duration) time.Duration {
	jitterRange := float64(delay) * b.config.JitterFraction
	jitter := (rand.Float64()*2 - 1) * jitterRange
	return time.Duration(float64(delay) + jitter)
}

// Reset resets the backoff to its initial state.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts = 0
	b.currentDelay = b.config.InitialDelay
}

// Attempts returns the number of attempts made so far.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Retry runs fn, retrying transient failures with backoff until
// retries are exhausted or the context is cancelled. The predicate
// decides which errors are worth retrying; a nil predicate retries
// every error. The last error is returned.
func Retry(ctx context.Context, config BackoffConfig, retryable func(error) bool, fn func(ctx context.Context) error) error {
	backoff := NewBackoff(config)

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}

		delay, ok := backoff.NextDelay()
		if !ok {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ABOUTME: Monthly consumption quota tracking per reputation provider
// ABOUTME: Fails fast once the budget is exhausted and exposes exhaustion state changes

package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned once a provider's monthly budget is
// exhausted. Callers must not attempt the remote call.
var ErrQuotaExceeded = errors.New("monthly quota exceeded")

// ExhaustionFunc is notified when a provider's quota flips between
// available and exhausted. Fired synchronously with the flip.
type ExhaustionFunc func(provider string, available bool)

// TrackerConfig configures the monthly quota tracker.
type TrackerConfig struct {
	// Budgets maps provider name to monthly call budget.
	// A provider without an entry is unmetered.
	Budgets map[string]int64

	// OnExhaustionChange is invoked when a provider's quota state
	// flips (optional). Useful for wiring a 0/1 gauge.
	OnExhaustionChange ExhaustionFunc

	// Clock overrides the time source for tests. Nil uses time.Now.
	Clock Clock
}

// providerQuota holds one provider's consumption for the period.
type providerQuota struct {
	budget      int64
	consumed    int64
	periodYear  int
	periodMonth time.Month
}

// Tracker accounts monthly consumption per provider. Check and
// consume are a single atomic operation.
type Tracker struct {
	mu        sync.Mutex
	now       Clock
	onChange  ExhaustionFunc
	providers map[string]*providerQuota
}

// NewTracker creates a monthly quota tracker from the configured
// budgets.
func NewTracker(config TrackerConfig) *Tracker {
	t := &Tracker{
		now:       orNow(config.Clock),
		onChange:  config.OnExhaustionChange,
		providers: make(map[string]*providerQuota, len(config.Budgets)),
	}
	for name, budget := range config.Budgets {
		t.providers[name] = &providerQuota{budget: budget}
		// Seed the gauge so every metered provider has a series from
		// startup, not from its first exhaustion.
		if t.onChange != nil {
			t.onChange(name, budget > 0)
		}
	}
	return t
}

// Consume takes one unit of the provider's budget. It returns
// ErrQuotaExceeded without consuming once the budget is gone.
// Unmetered providers always succeed.
func (t *Tracker) Consume(provider string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.providers[provider]
	if !ok {
		return nil
	}

	t.rolloverLocked(provider, q)

	if q.consumed >= q.budget {
		return fmt.Errorf("provider %s: %w", provider, ErrQuotaExceeded)
	}

	q.consumed++
	if q.consumed >= q.budget && t.onChange != nil {
		t.onChange(provider, false)
	}
	return nil
}

// Remaining returns the provider's remaining budget for the period.
// Unmetered providers report -1.
func (t *Tracker) Remaining(provider string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.providers[provider]
	if !ok {
		return -1
	}
	t.rolloverLocked(provider, q)
	return q.budget - q.consumed
}

// Exhausted reports whether the provider's budget is gone.
func (t *Tracker) Exhausted(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	q, ok := t.providers[provider]
	if !ok {
		return false
	}
	t.rolloverLocked(provider, q)
	return q.consumed >= q.budget
}

// rolloverLocked resets consumption when the calendar month has
// changed since the last call. Caller must hold t.mu.
func (t *Tracker) rolloverLocked(provider string, q *providerQuota) {
	now := t.now()
	year, month := now.Year(), now.Month()

	if q.periodYear == year && q.periodMonth == month {
		return
	}

	wasExhausted := q.periodYear != 0 && q.consumed >= q.budget
	q.periodYear = year
	q.periodMonth = month
	q.consumed = 0

	if wasExhausted && t.onChange != nil {
		t.onChange(provider, true)
	}
}

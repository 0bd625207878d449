// ABOUTME: Tests for the monthly quota tracker
// ABOUTME: Validates budget exhaustion, rollover, and exhaustion notifications

package quota

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTracker_ConsumesBudget(t *testing.T) {
	t.Parallel()

	var gauge sync.Map
	tracker := NewTracker(TrackerConfig{
		Budgets: map[string]int64{"malwarelist": 1},
		OnExhaustionChange: func(provider string, available bool) {
			gauge.Store(provider, available)
		},
	})

	if err := tracker.Consume("malwarelist"); err != nil {
		t.Fatalf("first Consume() error = %v, want nil", err)
	}

	err := tracker.Consume("malwarelist")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("second Consume() error = %v, want ErrQuotaExceeded", err)
	}

	if !tracker.Exhausted("malwarelist") {
		t.Error("Exhausted() = false, want true")
	}

	// Gauge reads exhausted (available=false).
	v, ok := gauge.Load("malwarelist")
	if !ok || v.(bool) {
		t.Errorf("gauge = %v, want exhausted (false)", v)
	}
}

func TestTracker_UnmeteredProvider(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(TrackerConfig{})

	for i := 0; i < 100; i++ {
		if err := tracker.Consume("local"); err != nil {
			t.Fatalf("Consume() error = %v for unmetered provider", err)
		}
	}
	if tracker.Remaining("local") != -1 {
		t.Errorf("Remaining() = %d, want -1 for unmetered", tracker.Remaining("local"))
	}
}

func TestTracker_MonthlyRollover(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	clock.Set(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC))

	var flips atomic.Int32
	tracker := NewTracker(TrackerConfig{
		Budgets: map[string]int64{"domainage": 2},
		Clock:   clock.Now,
		OnExhaustionChange: func(provider string, available bool) {
			flips.Add(1)
		},
	})

	_ = tracker.Consume("domainage")
	_ = tracker.Consume("domainage")
	if err := tracker.Consume("domainage"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Consume() error = %v, want ErrQuotaExceeded", err)
	}

	// Cross the month boundary; budget resets.
	clock.Set(time.Date(2026, 4, 1, 0, 1, 0, 0, time.UTC))

	if tracker.Exhausted("domainage") {
		t.Error("Exhausted() = true after rollover, want false")
	}
	if err := tracker.Consume("domainage"); err != nil {
		t.Errorf("Consume() after rollover error = %v, want nil", err)
	}
	if got := tracker.Remaining("domainage"); got != 1 {
		t.Errorf("Remaining() = %d, want 1", got)
	}
	// Seed at construction, one flip to exhausted, one back to
	// available after rollover.
	if flips.Load() != 3 {
		t.Errorf("exhaustion notifications = %d, want 3", flips.Load())
	}
}

func TestTracker_SeedsGaugeAtConstruction(t *testing.T) {
	t.Parallel()

	var gauge sync.Map
	NewTracker(TrackerConfig{
		Budgets: map[string]int64{"malwarelist": 100, "domainrep": 50},
		OnExhaustionChange: func(provider string, available bool) {
			gauge.Store(provider, available)
		},
	})

	// Every metered provider reports available before any consumption,
	// so scrapers can tell "available" from "not instrumented".
	for _, name := range []string{"malwarelist", "domainrep"} {
		v, ok := gauge.Load(name)
		if !ok {
			t.Errorf("gauge for %s not seeded", name)
			continue
		}
		if !v.(bool) {
			t.Errorf("gauge for %s = false at construction, want true", name)
		}
	}
}

func TestTracker_ExactlyOneWinsLastUnit(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(TrackerConfig{
		Budgets: map[string]int64{"contested": 1},
	})

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tracker.Consume("contested"); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded.Load())
	}
}

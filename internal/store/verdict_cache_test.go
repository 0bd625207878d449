// ABOUTME: Tests for the verdict cache
// ABOUTME: Covers round-trip, TTL expiry, overwrite, and digest validation

package store

import (
	"context"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

func newTestVerdictCache(t *testing.T, clock *recordClock, ttl time.Duration) *VerdictCache {
	t.Helper()

	c, err := NewVerdictCache(VerdictCacheConfig{
		Store: Config{InMemory: true},
		TTL:   ttl,
		Clock: clock.Now,
	})
	if err != nil {
		t.Fatalf("NewVerdictCache() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c
}

func TestVerdictCacheRoundTrip(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	c := newTestVerdictCache(t, clock, time.Hour)
	ctx := context.Background()
	urlHash := types.HashIdentifier(types.NamespaceURL, "https://example.com/x")

	verdict := types.Verdict{
		Severity:              types.VerdictDeny,
		ContributingProviders: []string{"malwarelist"},
		Score:                 0.9,
		ComputedAt:            clock.Now(),
	}
	if err := c.Put(ctx, urlHash, verdict); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, err := c.Get(ctx, urlHash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.Severity != types.VerdictDeny {
		t.Errorf("Severity = %v, want %v", got.Severity, types.VerdictDeny)
	}
	if len(got.ContributingProviders) != 1 || got.ContributingProviders[0] != "malwarelist" {
		t.Errorf("ContributingProviders = %v, want [malwarelist]", got.ContributingProviders)
	}
}

func TestVerdictCacheMiss(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	c := newTestVerdictCache(t, clock, time.Hour)

	_, found, err := c.Get(context.Background(), types.HashIdentifier(types.NamespaceURL, "https://absent.example"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true for missing entry, want false")
	}
}

func TestVerdictCacheExpiry(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	c := newTestVerdictCache(t, clock, 10*time.Minute)
	ctx := context.Background()
	urlHash := types.HashIdentifier(types.NamespaceURL, "https://example.com/x")

	if err := c.Put(ctx, urlHash, types.Verdict{Severity: types.VerdictSafe}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	clock.Advance(11 * time.Minute)

	_, found, err := c.Get(ctx, urlHash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true after TTL, want false")
	}
}

func TestVerdictCacheOverwrite(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	c := newTestVerdictCache(t, clock, time.Hour)
	ctx := context.Background()
	urlHash := types.HashIdentifier(types.NamespaceURL, "https://example.com/x")

	if err := c.Put(ctx, urlHash, types.Verdict{Severity: types.VerdictSafe}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put(ctx, urlHash, types.Verdict{Severity: types.VerdictWarn}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, found, err := c.Get(ctx, urlHash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.Severity != types.VerdictWarn {
		t.Errorf("Severity = %v, want %v", got.Severity, types.VerdictWarn)
	}
}

func TestVerdictCacheRejectsRawURL(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	c := newTestVerdictCache(t, clock, time.Hour)
	ctx := context.Background()

	if err := c.Put(ctx, "https://example.com/raw", types.Verdict{}); err == nil {
		t.Error("Put() error = nil, want error for non-digest key")
	}
	if _, _, err := c.Get(ctx, "https://example.com/raw"); err == nil {
		t.Error("Get() error = nil, want error for non-digest key")
	}
}

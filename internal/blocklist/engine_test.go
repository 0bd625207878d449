// ABOUTME: Tests for the blocklist engine
// ABOUTME: Covers host and URL matching, subdomain coverage, imports, and bloom rebuild

package blocklist

import (
	"context"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := NewEngine(EngineConfig{
		StoreConfig: store.Config{InMemory: true},
		BloomConfig: BloomConfig{ExpectedItems: 1000, FalsePositiveRate: 0.01},
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })

	return e
}

func hostEntry(host string) *Entry {
	return &Entry{Indicator: host, Kind: KindHost, Category: "malware", Source: "test-feed", AddedAt: time.Now()}
}

func TestEngineLookupHostMatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Import(ctx, []*Entry{hostEntry("evil.example")}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	match, err := e.Lookup(ctx, "https://evil.example/payload.exe")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !match.Matched {
		t.Fatal("Matched = false, want true")
	}
	if match.Entry.Indicator != "evil.example" {
		t.Errorf("Indicator = %v, want evil.example", match.Entry.Indicator)
	}
}

func TestEngineLookupSubdomainMatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Import(ctx, []*Entry{hostEntry("evil.example")}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	match, err := e.Lookup(ctx, "https://cdn.evil.example/x")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !match.Matched {
		t.Error("Matched = false for subdomain of listed host, want true")
	}
}

func TestEngineLookupFullURLMatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	entry := &Entry{
		Indicator: "https://good-host.example/malicious/path",
		Kind:      KindURL,
		Source:    "test-feed",
		AddedAt:   time.Now(),
	}
	if _, err := e.Import(ctx, []*Entry{entry}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	match, err := e.Lookup(ctx, "HTTPS://GOOD-HOST.example/malicious/path")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !match.Matched {
		t.Error("Matched = false for listed URL, want true")
	}

	match, err = e.Lookup(ctx, "https://good-host.example/other/path")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if match.Matched {
		t.Error("Matched = true for unlisted path, want false")
	}
}

func TestEngineLookupMiss(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Import(ctx, []*Entry{hostEntry("evil.example")}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	match, err := e.Lookup(ctx, "https://benign.example/")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if match.Matched {
		t.Error("Matched = true for unlisted host, want false")
	}
}

func TestEngineImportSkipsInvalid(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	stored, err := e.Import(ctx, []*Entry{
		hostEntry("evil.example"),
		{Indicator: "", Kind: KindHost},
		nil,
		{Indicator: "bad.example", Kind: "bogus"},
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stored != 1 {
		t.Errorf("Import() stored = %v, want 1", stored)
	}
}

func TestEngineRebuildBloomFilter(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Import(ctx, []*Entry{hostEntry("evil.example")}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	// Clearing the live filter makes every lookup a definite miss.
	e.bloom.Clear()
	match, err := e.Lookup(ctx, "https://evil.example/")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if match.Matched {
		t.Fatal("Matched = true after filter clear, want false")
	}

	if err := e.RebuildBloomFilter(ctx); err != nil {
		t.Fatalf("RebuildBloomFilter() error = %v", err)
	}

	match, err = e.Lookup(ctx, "https://evil.example/")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !match.Matched {
		t.Error("Matched = false after rebuild, want true")
	}
}

func TestEngineStats(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.Import(ctx, []*Entry{hostEntry("a.example"), hostEntry("b.example")}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if _, err := e.Lookup(ctx, "https://a.example/"); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.EntryCount != 2 {
		t.Errorf("EntryCount = %v, want 2", stats.EntryCount)
	}
	if stats.TotalLookups != 1 {
		t.Errorf("TotalLookups = %v, want 1", stats.TotalLookups)
	}
	if stats.Matches != 1 {
		t.Errorf("Matches = %v, want 1", stats.Matches)
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	got := candidates("https://a.b.c.example/path#frag")

	want := map[string]bool{
		"https://a.b.c.example/path": true,
		"a.b.c.example":              true,
		"b.c.example":                true,
		"c.example":                  true,
	}
	if len(got) != len(want) {
		t.Fatalf("candidates() = %v, want %d entries", got, len(want))
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("unexpected candidate %q", c)
		}
	}
}

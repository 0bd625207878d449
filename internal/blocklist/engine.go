// ABOUTME: Two-tier blocklist lookup engine: bloom rejection, then BadgerDB confirmation
// ABOUTME: Matches scanned URLs against host and full-URL indicators from threat feeds

package blocklist

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// EngineConfig holds configuration for the blocklist engine.
type EngineConfig struct {
	// BadgerDB store configuration.
	StoreConfig store.Config

	// Bloom filter configuration.
	BloomConfig BloomConfig

	// RebuildBloomOnStart rebuilds the bloom filter from the database on
	// startup so existing indicators are reflected after a restart.
	RebuildBloomOnStart bool
}

// Match reports a blocklist hit for a URL.
type Match struct {
	// Matched indicates whether any indicator hit.
	Matched bool

	// Entry is the matching entry when Matched is true.
	Entry *Entry
}

// EngineStats contains statistics about the engine.
type EngineStats struct {
	EntryCount      int64
	StoreSizeBytes  int64
	BloomCapacity   uint
	BloomBitSetSize uint64

	TotalLookups    int64
	BloomRejections int64
	StoreLookups    int64
	Matches         int64
}

// Engine is the blocklist lookup engine. Every candidate indicator for
// a URL is first tested against the bloom filter; only maybe-present
// indicators reach the store.
type Engine struct {
	store  *Store
	bloom  *BloomFilter
	config EngineConfig

	totalLookups    atomic.Int64
	bloomRejections atomic.Int64
	storeLookups    atomic.Int64
	matches         atomic.Int64
}

// NewEngine creates a new blocklist engine with the given configuration.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	s, err := NewStore(cfg.StoreConfig)
	if err != nil {
		return nil, fmt.Errorf("creating blocklist store: %w", err)
	}

	e := &Engine{
		store:  s,
		bloom:  NewBloomFilter(cfg.BloomConfig),
		config: cfg,
	}

	if cfg.RebuildBloomOnStart {
		if err := e.RebuildBloomFilter(context.Background()); err != nil {
			s.Close()
			return nil, fmt.Errorf("rebuilding bloom filter on start: %w", err)
		}
	}

	return e, nil
}

// Close closes the engine and releases resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Lookup matches a URL against the blocklist. Candidates are the
// normalized full URL and its host; the host also matches with leading
// subdomains stripped so an entry for example.com covers evil.example.com.
func (e *Engine) Lookup(ctx context.Context, rawURL string) (Match, error) {
	e.totalLookups.Add(1)

	for _, candidate := range candidates(rawURL) {
		if !e.bloom.Test(candidate) {
			e.bloomRejections.Add(1)
			continue
		}

		e.storeLookups.Add(1)
		entry, err := e.store.Get(ctx, candidate)
		if err != nil {
			return Match{}, fmt.Errorf("looking up %q: %w", candidate, err)
		}
		if entry != nil {
			e.matches.Add(1)
			return Match{Matched: true, Entry: entry}, nil
		}
		// False positive from the bloom filter.
	}

	return Match{}, nil
}

// Import stores entries and adds their indicators to the live bloom
// filter. Returns the number of entries stored.
func (e *Engine) Import(ctx context.Context, entries []*Entry) (int, error) {
	stored, err := e.store.BatchPut(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("importing entries: %w", err)
	}

	for _, entry := range entries {
		if entry == nil || entry.validate() != nil {
			continue
		}
		e.bloom.Add(entry.Indicator)
	}

	return stored, nil
}

// RebuildBloomFilter rebuilds the bloom filter from the store and swaps
// it in atomically. Used after bulk feed imports to drop stale bits.
func (e *Engine) RebuildBloomFilter(ctx context.Context) error {
	newBloom := NewBloomFilter(e.config.BloomConfig)

	err := e.store.IterateIndicators(ctx, func(indicator string) error {
		newBloom.Add(indicator)
		return nil
	})
	if err != nil {
		return fmt.Errorf("iterating indicators: %w", err)
	}

	e.bloom.Swap(newBloom)
	return nil
}

// Stats returns statistics about the engine.
func (e *Engine) Stats(ctx context.Context) (*EngineStats, error) {
	storeStats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting store stats: %w", err)
	}

	bloomStats := e.bloom.Stats()

	return &EngineStats{
		EntryCount:      storeStats.EntryCount,
		StoreSizeBytes:  storeStats.SizeBytes,
		BloomCapacity:   bloomStats.Capacity,
		BloomBitSetSize: bloomStats.BitSetSize,
		TotalLookups:    e.totalLookups.Load(),
		BloomRejections: e.bloomRejections.Load(),
		StoreLookups:    e.storeLookups.Load(),
		Matches:         e.matches.Load(),
	}, nil
}

// GetStore returns the underlying store (for feed imports).
func (e *Engine) GetStore() *Store {
	return e.store
}

// candidates returns the indicator strings to test for a URL: the
// normalized URL itself, its host, and each parent domain of the host.
func candidates(rawURL string) []string {
	out := []string{types.NormalizeURL(rawURL)}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return out
	}

	host := strings.ToLower(u.Hostname())
	out = append(out, host)

	parts := strings.Split(host, ".")
	for i := 1; i < len(parts)-1; i++ {
		out = append(out, strings.Join(parts[i:], "."))
	}

	return out
}

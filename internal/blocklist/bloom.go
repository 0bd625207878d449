// ABOUTME: Bloom filter wrapper over blocklist indicators with atomic swap for feed reloads
// ABOUTME: Fast definite-miss rejection before any BadgerDB lookup

package blocklist

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomConfig holds configuration for the Bloom filter.
type BloomConfig struct {
	// Expected number of indicators to be added.
	ExpectedItems uint

	// Desired false positive rate (e.g., 0.01 for 1%).
	FalsePositiveRate float64
}

// BloomStats contains statistics about the Bloom filter.
type BloomStats struct {
	Capacity          uint
	FalsePositiveRate float64
	BitSetSize        uint64
	HashFunctions     uint
}

// BloomFilter wraps a Bloom filter with atomic swap capability so a
// freshly built filter from a feed update replaces the live one without
// blocking lookups.
type BloomFilter struct {
	filter atomic.Pointer[bloom.BloomFilter]
	mu     sync.RWMutex // Protects writes to the filter
	config BloomConfig
}

// NewBloomFilter creates a new Bloom filter with the given configuration.
func NewBloomFilter(cfg BloomConfig) *BloomFilter {
	bf := &BloomFilter{config: cfg}

	f := bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate)
	bf.filter.Store(f)

	return bf
}

// Add adds an indicator to the filter.
func (bf *BloomFilter) Add(indicator string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	f := bf.filter.Load()
	if f != nil {
		f.Add([]byte(indicator))
	}
}

// Test checks if an indicator might be in the filter.
// Returns true if the indicator might be present (could be false positive).
// Returns false if the indicator is definitely not present.
func (bf *BloomFilter) Test(indicator string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	f := bf.filter.Load()
	if f == nil {
		return false
	}
	return f.Test([]byte(indicator))
}

// Swap atomically replaces the internal filter with the one from another BloomFilter.
func (bf *BloomFilter) Swap(other *BloomFilter) {
	if other == nil {
		return
	}
	bf.mu.Lock()
	defer bf.mu.Unlock()
	newFilter := other.filter.Load()
	if newFilter != nil {
		bf.filter.Store(newFilter)
	}
}

// Clear clears the filter by creating a new empty one.
func (bf *BloomFilter) Clear() {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	f := bloom.NewWithEstimates(bf.config.ExpectedItems, bf.config.FalsePositiveRate)
	bf.filter.Store(f)
}

// Stats returns statistics about the filter.
func (bf *BloomFilter) Stats() BloomStats {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	f := bf.filter.Load()
	if f == nil {
		return BloomStats{
			Capacity:          bf.config.ExpectedItems,
			FalsePositiveRate: bf.config.FalsePositiveRate,
		}
	}

	return BloomStats{
		Capacity:          bf.config.ExpectedItems,
		FalsePositiveRate: bf.config.FalsePositiveRate,
		BitSetSize:        uint64(f.Cap() / 8),
		HashFunctions:     f.K(),
	}
}

// SaveToFile saves the filter to a file for warm restarts.
func (bf *BloomFilter) SaveToFile(path string) error {
	bf.mu.RLock()
	f := bf.filter.Load()
	bf.mu.RUnlock()
	if f == nil {
		return fmt.Errorf("filter is nil")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating filter file: %w", err)
	}
	defer file.Close()

	if _, err := f.WriteTo(file); err != nil {
		return fmt.Errorf("writing filter: %w", err)
	}

	return nil
}

// LoadBloomFilter loads a Bloom filter from a file.
func LoadBloomFilter(path string, cfg BloomConfig) (*BloomFilter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening filter file: %w", err)
	}
	defer file.Close()

	f := &bloom.BloomFilter{}
	if _, err := f.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("reading filter: %w", err)
	}

	bf := &BloomFilter{config: cfg}
	bf.filter.Store(f)

	return bf, nil
}

// ABOUTME: BadgerDB-backed store of blocklist entries keyed by indicator
// ABOUTME: Supports batch imports from feed updates and full iteration for bloom rebuilds

package blocklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
)

const entryPrefix = "bl:"

// IndicatorKind distinguishes host-level from full-URL indicators.
type IndicatorKind string

const (
	KindHost IndicatorKind = "host"
	KindURL  IndicatorKind = "url"
)

// Entry is a single blocklist indicator with its provenance.
type Entry struct {
	// Indicator is the normalized host or URL string. Blocklist data is
	// public feed content, not user identifiers, so it is stored as-is.
	Indicator string        `json:"indicator"`
	Kind      IndicatorKind `json:"kind"`
	Category  string        `json:"category,omitempty"`
	Source    string        `json:"source,omitempty"`
	AddedAt   time.Time     `json:"added_at"`
}

func (e *Entry) validate() error {
	if e.Indicator == "" {
		return fmt.Errorf("indicator is empty")
	}
	if e.Kind != KindHost && e.Kind != KindURL {
		return fmt.Errorf("unknown indicator kind %q", e.Kind)
	}
	return nil
}

// StoreStats contains statistics about the blocklist store.
type StoreStats struct {
	EntryCount int64
	SizeBytes  int64
}

// Store is a BadgerDB-backed blocklist indicator store.
type Store struct {
	db *badger.DB
}

// NewStore opens a blocklist store with the given configuration.
func NewStore(cfg store.Config) (*Store, error) {
	db, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a single entry, overwriting any previous one for the
// same indicator.
func (s *Store) Put(ctx context.Context, entry *Entry) error {
	if err := entry.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.Indicator), data)
	})
	if err != nil {
		return fmt.Errorf("storing entry: %w", err)
	}
	return nil
}

// BatchPut stores multiple entries using a write batch. Invalid entries
// are skipped; feed lines are best effort.
func (s *Store) BatchPut(ctx context.Context, entries []*Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	stored := 0
	for _, entry := range entries {
		if entry == nil || entry.validate() != nil {
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := wb.Set(entryKey(entry.Indicator), data); err != nil {
			return stored, fmt.Errorf("batch set: %w", err)
		}
		stored++
	}

	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flushing batch: %w", err)
	}
	return stored, nil
}

// Get retrieves the entry for an indicator. Returns nil when absent.
func (s *Store) Get(ctx context.Context, indicator string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(indicator))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("unmarshaling entry: %w", err)
			}
			entry = &e
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}
	return entry, nil
}

// IterateIndicators calls fn for every stored indicator. Used to
// rebuild the bloom filter after restarts or feed imports.
func (s *Store) IterateIndicators(ctx context.Context, fn func(indicator string) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			if err := fn(strings.TrimPrefix(key, entryPrefix)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats returns statistics about the store.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	var count int64
	err := s.IterateIndicators(ctx, func(string) error {
		count++
		return nil
	})
	if err != nil {
		return nil, err
	}

	lsm, vlog := s.db.Size()
	return &StoreStats{EntryCount: count, SizeBytes: lsm + vlog}, nil
}

func entryKey(indicator string) []byte {
	return []byte(entryPrefix + indicator)
}

// ABOUTME: VerdictCache caches aggregated verdicts keyed by URL hash with a TTL
// ABOUTME: Lets repeated sightings of a URL skip provider fan-out entirely

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

const verdictPrefix = "verdict:"

// cachedVerdict is the stored envelope around a verdict.
type cachedVerdict struct {
	Verdict   types.Verdict `json:"verdict"`
	CachedAt  time.Time     `json:"cached_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// VerdictCacheConfig holds configuration for the verdict cache.
type VerdictCacheConfig struct {
	Store Config

	// TTL is how long cached verdicts stay valid.
	TTL time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// VerdictCache is a BadgerDB-backed cache of verdicts by URL hash.
type VerdictCache struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

// NewVerdictCache opens a verdict cache with the given configuration.
func NewVerdictCache(cfg VerdictCacheConfig) (*VerdictCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	db, err := Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	return &VerdictCache{db: db, ttl: cfg.TTL, now: cfg.Clock}, nil
}

// Close closes the underlying database.
func (c *VerdictCache) Close() error {
	return c.db.Close()
}

// Put caches the verdict for the given URL hash.
func (c *VerdictCache) Put(ctx context.Context, urlHash string, verdict types.Verdict) error {
	if !types.IsDigest(urlHash) {
		return fmt.Errorf("url hash is not a digest")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := c.now()
	entry := cachedVerdict{
		Verdict:   verdict,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshaling cached verdict: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(verdictKey(urlHash), data).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("caching verdict: %w", err)
	}
	return nil
}

// Get retrieves a live cached verdict for the given URL hash.
func (c *VerdictCache) Get(ctx context.Context, urlHash string) (*types.Verdict, bool, error) {
	if !types.IsDigest(urlHash) {
		return nil, false, fmt.Errorf("url hash is not a digest")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var entry cachedVerdict
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(verdictKey(urlHash))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached verdict: %w", err)
	}

	if !entry.ExpiresAt.After(c.now()) {
		return nil, false, nil
	}

	verdict := entry.Verdict
	return &verdict, true, nil
}

func verdictKey(urlHash string) []byte {
	return []byte(verdictPrefix + urlHash)
}

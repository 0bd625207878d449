// ABOUTME: RecordStore persists privacy-preserving message records keyed by hashed identifiers
// ABOUTME: Create-if-absent semantics back duplicate-scan detection; entries carry a TTL

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

const recordPrefix = "msg:"

// maxCreateRetries bounds retries on Badger transaction conflicts.
const maxCreateRetries = 3

// HashedRecord is a persisted message record. Every identifier field
// holds a namespace-hashed digest; raw chat, message, or sender values
// must never appear here. URLs are not conversation identifiers, so
// the normalized forms are kept in the clear alongside their hashes.
type HashedRecord struct {
	HashedChatID    string         `json:"hashed_chat_id"`
	HashedMessageID string         `json:"hashed_message_id"`
	SenderIDHash    string         `json:"sender_id_hash,omitempty"`
	NormalizedURLs  []string       `json:"normalized_urls,omitempty"`
	URLHashes       []string       `json:"url_hashes,omitempty"`
	Verdict         *types.Verdict `json:"verdict,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
}

// Key returns the hashed key identifying this record.
func (r *HashedRecord) Key() types.HashedKey {
	return types.HashedKey{Chat: r.HashedChatID, Message: r.HashedMessageID}
}

// validate rejects records whose identifier fields are not digests.
// This is the structural guard that keeps raw identifiers out of storage.
func (r *HashedRecord) validate() error {
	key := r.Key()
	if err := key.Validate(); err != nil {
		return err
	}
	if r.SenderIDHash != "" && !types.IsDigest(r.SenderIDHash) {
		return fmt.Errorf("sender id hash is not a digest")
	}
	for _, h := range r.URLHashes {
		if !types.IsDigest(h) {
			return fmt.Errorf("url hash is not a digest")
		}
	}
	return nil
}

// RecordStoreConfig holds configuration for the record store.
type RecordStoreConfig struct {
	Store Config

	// TTL is the retention period for records. Records older than this
	// are treated as absent on read and reclaimed by Badger.
	TTL time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// RecordStore is a BadgerDB-backed store of hashed message records.
type RecordStore struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

// NewRecordStore opens a record store with the given configuration.
func NewRecordStore(cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	db, err := Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	return &RecordStore{db: db, ttl: cfg.TTL, now: cfg.Clock}, nil
}

// Close closes the underlying database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// Create persists the record if no live record exists for its key.
// Returns true when the record was written, false when a live record
// already existed. The existence check and the write happen in a single
// transaction so concurrent creators cannot both win.
func (s *RecordStore) Create(ctx context.Context, rec *HashedRecord) (bool, error) {
	if err := rec.validate(); err != nil {
		return false, fmt.Errorf("invalid record: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := s.now()
	rec.CreatedAt = now
	rec.ExpiresAt = now.Add(s.ttl)

	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshaling record: %w", err)
	}

	key := recordKey(rec.Key())

	var created bool
	for attempt := 0; attempt < maxCreateRetries; attempt++ {
		created = false
		err = s.db.Update(func(txn *badger.Txn) error {
			item, getErr := txn.Get(key)
			switch {
			case getErr == nil:
				live, decodeErr := s.isLive(item)
				if decodeErr != nil {
					return decodeErr
				}
				if live {
					return nil
				}
			case !errors.Is(getErr, badger.ErrKeyNotFound):
				return getErr
			}

			entry := badger.NewEntry(key, data).WithTTL(s.ttl)
			if setErr := txn.SetEntry(entry); setErr != nil {
				return setErr
			}
			created = true
			return nil
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return false, fmt.Errorf("creating record: %w", err)
	}

	return created, nil
}

// Get retrieves the live record for the given key. Returns false when
// no record exists or the stored record has expired.
func (s *RecordStore) Get(ctx context.Context, key types.HashedKey) (*HashedRecord, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid key: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var rec *HashedRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r HashedRecord
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			rec = &r
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading record: %w", err)
	}

	if !rec.ExpiresAt.After(s.now()) {
		return nil, false, nil
	}

	return rec, true, nil
}

// Exists reports whether a live record exists for the given key.
func (s *RecordStore) Exists(ctx context.Context, key types.HashedKey) (bool, error) {
	_, found, err := s.Get(ctx, key)
	return found, err
}

// Recent returns up to limit live records ordered by creation time,
// newest first. Used by the admin API; bounded scans only.
func (s *RecordStore) Recent(ctx context.Context, limit int) ([]*HashedRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	var records []*HashedRecord

	err := s.ForEach(ctx, func(_, val []byte) error {
		var r HashedRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return nil // Skip corrupt entries.
		}
		if !r.ExpiresAt.After(now) {
			return nil
		}
		records = append(records, &r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// ForEach visits every stored record entry, passing the raw key and
// value bytes. Iteration stops at the first error from fn.
func (s *RecordStore) ForEach(ctx context.Context, fn func(key, value []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// isLive reports whether the stored item decodes to an unexpired record.
func (s *RecordStore) isLive(item *badger.Item) (bool, error) {
	var live bool
	err := item.Value(func(val []byte) error {
		var r HashedRecord
		if err := json.Unmarshal(val, &r); err != nil {
			// Treat undecodable entries as dead so they get overwritten.
			return nil
		}
		live = r.ExpiresAt.After(s.now())
		return nil
	})
	return live, err
}

func recordKey(key types.HashedKey) []byte {
	return []byte(recordPrefix + key.Chat + ":" + key.Message)
}

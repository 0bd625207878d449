// ABOUTME: GroupStore tracks chat membership and mute state keyed by hashed chat IDs
// ABOUTME: Mute windows suppress notifications without disabling scanning

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

const groupPrefix = "grp:"

// GroupRecord is the persisted state for a chat. The chat identifier is
// stored only as its namespace hash.
type GroupRecord struct {
	HashedChatID string     `json:"hashed_chat_id"`
	Joined       bool       `json:"joined"`
	JoinedAt     time.Time  `json:"joined_at,omitempty"`
	LeftAt       time.Time  `json:"left_at,omitempty"`
	MutedUntil   *time.Time `json:"muted_until,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GroupStoreConfig holds configuration for the group store.
type GroupStoreConfig struct {
	Store Config

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// GroupStore is a BadgerDB-backed store of per-chat state.
type GroupStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewGroupStore opens a group store with the given configuration.
func NewGroupStore(cfg GroupStoreConfig) (*GroupStore, error) {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	db, err := Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	return &GroupStore{db: db, now: cfg.Clock}, nil
}

// Close closes the underlying database.
func (s *GroupStore) Close() error {
	return s.db.Close()
}

// RecordJoin marks the chat as joined.
func (s *GroupStore) RecordJoin(ctx context.Context, hashedChatID string) error {
	return s.mutate(ctx, hashedChatID, func(rec *GroupRecord, now time.Time) {
		rec.Joined = true
		rec.JoinedAt = now
	})
}

// RecordLeave marks the chat as left. Mute state is cleared so a
// rejoined chat starts unmuted.
func (s *GroupStore) RecordLeave(ctx context.Context, hashedChatID string) error {
	return s.mutate(ctx, hashedChatID, func(rec *GroupRecord, now time.Time) {
		rec.Joined = false
		rec.LeftAt = now
		rec.MutedUntil = nil
	})
}

// Mute suppresses notifications for the chat until the given time.
func (s *GroupStore) Mute(ctx context.Context, hashedChatID string, until time.Time) error {
	return s.mutate(ctx, hashedChatID, func(rec *GroupRecord, _ time.Time) {
		rec.MutedUntil = &until
	})
}

// Unmute clears any mute window for the chat.
func (s *GroupStore) Unmute(ctx context.Context, hashedChatID string) error {
	return s.mutate(ctx, hashedChatID, func(rec *GroupRecord, _ time.Time) {
		rec.MutedUntil = nil
	})
}

// Get retrieves the record for the chat. Returns false when the chat
// has never been seen.
func (s *GroupStore) Get(ctx context.Context, hashedChatID string) (*GroupRecord, bool, error) {
	if !types.IsDigest(hashedChatID) {
		return nil, false, fmt.Errorf("chat id is not a digest")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var rec *GroupRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(hashedChatID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r GroupRecord
			if err := json.Unmarshal(val, &r); err != nil {
				return fmt.Errorf("unmarshaling group record: %w", err)
			}
			rec = &r
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading group record: %w", err)
	}

	return rec, true, nil
}

// IsMuted reports whether notifications for the chat are currently
// suppressed. Unknown chats are never muted.
func (s *GroupStore) IsMuted(ctx context.Context, hashedChatID string) (bool, error) {
	rec, found, err := s.Get(ctx, hashedChatID)
	if err != nil || !found {
		return false, err
	}
	if rec.MutedUntil == nil {
		return false, nil
	}
	return rec.MutedUntil.After(s.now()), nil
}

// mutate loads or initializes the record for the chat, applies fn, and
// persists the result in one transaction.
func (s *GroupStore) mutate(ctx context.Context, hashedChatID string, fn func(*GroupRecord, time.Time)) error {
	if !types.IsDigest(hashedChatID) {
		return fmt.Errorf("chat id is not a digest")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		rec := GroupRecord{HashedChatID: hashedChatID}

		item, err := txn.Get(groupKey(hashedChatID))
		switch {
		case err == nil:
			if valErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); valErr != nil {
				return valErr
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		fn(&rec, now)
		rec.UpdatedAt = now

		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("marshaling group record: %w", err)
		}
		return txn.Set(groupKey(hashedChatID), data)
	})
	if err != nil {
		return fmt.Errorf("updating group record: %w", err)
	}
	return nil
}

func groupKey(hashedChatID string) []byte {
	return []byte(groupPrefix + hashedChatID)
}

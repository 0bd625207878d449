// ABOUTME: Tests for the hashed record store
// ABOUTME: Covers create-if-absent, digest validation, expiry, and recent listing

package store

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

type recordClock struct {
	mu  sync.Mutex
	now time.Time
}

func newRecordClock() *recordClock {
	return &recordClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *recordClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *recordClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRecordStore(t *testing.T, clock *recordClock, ttl time.Duration) *RecordStore {
	t.Helper()

	s, err := NewRecordStore(RecordStoreConfig{
		Store: Config{InMemory: true},
		TTL:   ttl,
		Clock: clock.Now,
	})
	if err != nil {
		t.Fatalf("NewRecordStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func testRecord(chat, message string) *HashedRecord {
	return &HashedRecord{
		HashedChatID:    types.HashIdentifier(types.NamespaceChat, chat),
		HashedMessageID: types.HashIdentifier(types.NamespaceMessage, message),
		SenderIDHash:    types.HashIdentifier(types.NamespaceSender, "sender-1"),
		URLHashes:       []string{types.HashIdentifier(types.NamespaceURL, "https://example.com/a")},
	}
}

func TestRecordStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestRecordStore(t, clock, time.Hour)
	ctx := context.Background()

	rec := testRecord("chat-1", "msg-1")
	created, err := s.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created {
		t.Error("Create() = false, want true for new record")
	}

	got, found, err := s.Get(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.HashedChatID != rec.HashedChatID {
		t.Errorf("HashedChatID = %v, want %v", got.HashedChatID, rec.HashedChatID)
	}
	if len(got.URLHashes) != 1 {
		t.Errorf("len(URLHashes) = %v, want 1", len(got.URLHashes))
	}
}

func TestRecordStoreCreateDuplicate(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestRecordStore(t, clock, time.Hour)
	ctx := context.Background()

	rec := testRecord("chat-1", "msg-1")
	if _, err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	created, err := s.Create(ctx, testRecord("chat-1", "msg-1"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created {
		t.Error("Create() = true, want false for existing record")
	}
}

func TestRecordStoreRejectsRawIdentifiers(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestRecordStore(t, clock, time.Hour)
	ctx := context.Background()

	rec := testRecord("chat-1", "msg-1")
	rec.HashedChatID = "raw-chat-id"

	if _, err := s.Create(ctx, rec); err == nil {
		t.Error("Create() error = nil, want error for non-digest chat id")
	}

	rec = testRecord("chat-1", "msg-1")
	rec.URLHashes = append(rec.URLHashes, "https://example.com/raw")
	if _, err := s.Create(ctx, rec); err == nil {
		t.Error("Create() error = nil, want error for non-digest url hash")
	}
}

func TestRecordStoreExpiry(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestRecordStore(t, clock, time.Hour)
	ctx := context.Background()

	rec := testRecord("chat-1", "msg-1")
	if _, err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	clock.Advance(61 * time.Minute)

	_, found, err := s.Get(ctx, rec.Key())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true after expiry, want false")
	}

	// An expired record no longer blocks a fresh create.
	created, err := s.Create(ctx, testRecord("chat-1", "msg-1"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created {
		t.Error("Create() = false after expiry, want true")
	}
}

func TestRecordStoreConcurrentCreateOneWins(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestRecordStore(t, clock, time.Hour)
	ctx := context.Background()

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.Create(ctx, testRecord("chat-race", "msg-race"))
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			if created {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Errorf("created count = %v, want exactly 1", got)
	}
}

func TestRecordStoreRecent(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestRecordStore(t, clock, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := testRecord("chat-1", "msg-"+strconv.Itoa(i))
		if _, err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		clock.Advance(time.Minute)
	}

	records, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(Recent()) = %v, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.After(records[i-1].CreatedAt) {
			t.Error("Recent() not ordered newest first")
		}
	}
}

// ABOUTME: Tests for the group store
// ABOUTME: Covers join/leave lifecycle, mute windows, and digest validation

package store

import (
	"context"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

func newTestGroupStore(t *testing.T, clock *recordClock) *GroupStore {
	t.Helper()

	s, err := NewGroupStore(GroupStoreConfig{
		Store: Config{InMemory: true},
		Clock: clock.Now,
	})
	if err != nil {
		t.Fatalf("NewGroupStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestGroupStoreJoinLeave(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestGroupStore(t, clock)
	ctx := context.Background()
	chatID := types.HashIdentifier(types.NamespaceChat, "chat-1")

	if err := s.RecordJoin(ctx, chatID); err != nil {
		t.Fatalf("RecordJoin() error = %v", err)
	}

	rec, found, err := s.Get(ctx, chatID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if !rec.Joined {
		t.Error("Joined = false, want true")
	}

	if err := s.RecordLeave(ctx, chatID); err != nil {
		t.Fatalf("RecordLeave() error = %v", err)
	}

	rec, _, err = s.Get(ctx, chatID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Joined {
		t.Error("Joined = true after leave, want false")
	}
}

func TestGroupStoreMute(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestGroupStore(t, clock)
	ctx := context.Background()
	chatID := types.HashIdentifier(types.NamespaceChat, "chat-1")

	muted, err := s.IsMuted(ctx, chatID)
	if err != nil {
		t.Fatalf("IsMuted() error = %v", err)
	}
	if muted {
		t.Error("IsMuted() = true for unknown chat, want false")
	}

	until := clock.Now().Add(time.Hour)
	if err := s.Mute(ctx, chatID, until); err != nil {
		t.Fatalf("Mute() error = %v", err)
	}

	muted, err = s.IsMuted(ctx, chatID)
	if err != nil {
		t.Fatalf("IsMuted() error = %v", err)
	}
	if !muted {
		t.Error("IsMuted() = false during mute window, want true")
	}

	clock.Advance(61 * time.Minute)

	muted, err = s.IsMuted(ctx, chatID)
	if err != nil {
		t.Fatalf("IsMuted() error = %v", err)
	}
	if muted {
		t.Error("IsMuted() = true after window elapsed, want false")
	}
}

func TestGroupStoreUnmute(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestGroupStore(t, clock)
	ctx := context.Background()
	chatID := types.HashIdentifier(types.NamespaceChat, "chat-1")

	if err := s.Mute(ctx, chatID, clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Mute() error = %v", err)
	}
	if err := s.Unmute(ctx, chatID); err != nil {
		t.Fatalf("Unmute() error = %v", err)
	}

	muted, err := s.IsMuted(ctx, chatID)
	if err != nil {
		t.Fatalf("IsMuted() error = %v", err)
	}
	if muted {
		t.Error("IsMuted() = true after unmute, want false")
	}
}

func TestGroupStoreLeaveClearsMute(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestGroupStore(t, clock)
	ctx := context.Background()
	chatID := types.HashIdentifier(types.NamespaceChat, "chat-1")

	if err := s.RecordJoin(ctx, chatID); err != nil {
		t.Fatalf("RecordJoin() error = %v", err)
	}
	if err := s.Mute(ctx, chatID, clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Mute() error = %v", err)
	}
	if err := s.RecordLeave(ctx, chatID); err != nil {
		t.Fatalf("RecordLeave() error = %v", err)
	}

	muted, err := s.IsMuted(ctx, chatID)
	if err != nil {
		t.Fatalf("IsMuted() error = %v", err)
	}
	if muted {
		t.Error("IsMuted() = true after leave, want false")
	}
}

func TestGroupStoreRejectsRawChatID(t *testing.T) {
	t.Parallel()

	clock := newRecordClock()
	s := newTestGroupStore(t, clock)
	ctx := context.Background()

	if err := s.RecordJoin(ctx, "raw-chat-id"); err == nil {
		t.Error("RecordJoin() error = nil, want error for non-digest chat id")
	}
	if _, _, err := s.Get(ctx, "raw-chat-id"); err == nil {
		t.Error("Get() error = nil, want error for non-digest chat id")
	}
}

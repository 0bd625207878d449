// ABOUTME: Unit tests for the Redis client wrapper
// ABOUTME: Uses miniredis for isolated testing without external Redis

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := NewClient(Config{Addr: mr.Addr(), Prefix: "test:"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewClientUnreachable(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Addr: "127.0.0.1:1", ReadTimeout: 100 * time.Millisecond})
	if err == nil {
		t.Error("NewClient() error = nil, want connection error")
	}
}

func TestClientPrefixedKey(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := NewClient(Config{Addr: mr.Addr(), Prefix: "sentinel:"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if got := client.PrefixedKey("rl:x"); got != "sentinel:rl:x" {
		t.Errorf("PrefixedKey() = %v, want sentinel:rl:x", got)
	}
}

func TestClientDefaultPrefix(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := NewClient(Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if got := client.PrefixedKey("k"); got != "sentinel:k" {
		t.Errorf("PrefixedKey() = %v, want sentinel:k", got)
	}
}

func TestClientSetGet(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	client, err := NewClient(Config{Addr: mr.Addr(), Prefix: "test:"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	if err := client.Set(ctx, "key1", "value1", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := client.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "value1" {
		t.Errorf("Get() = %v, want value1", got)
	}

	// The stored key carries the prefix.
	if !mr.Exists("test:key1") {
		t.Error("key test:key1 not found in redis")
	}

	if _, err := client.Get(ctx, "missing"); err == nil {
		t.Error("Get() error = nil for missing key, want error")
	}
}

// ABOUTME: Unit tests for daemon command wiring helpers
// ABOUTME: Covers provider construction, limiter selection, and flag setup

package main

import (
	"context"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/config"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/feeds"
)

func TestBuildProvider(t *testing.T) {
	t.Parallel()

	pc := config.ProviderConfig{
		BaseURL: "https://api.example",
		APIKey:  "key",
		Timeout: 5 * time.Second,
	}

	for _, name := range []string{"malwarelist", "domainrep", "domainage"} {
		p, err := buildProvider(name, pc, nil)
		if err != nil {
			t.Fatalf("buildProvider(%s) error = %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
	}

	if _, err := buildProvider("nonesuch", pc, nil); err == nil {
		t.Error("buildProvider(nonesuch) error = nil, want error")
	}
}

func TestBuildLimiter(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	// No rate limit configured means no limiter at all.
	if l := buildLimiter("x", config.ProviderConfig{}, cfg, nil, nil); l != nil {
		t.Error("buildLimiter() != nil for unlimited provider")
	}

	// Without Redis the in-process fixed window applies.
	l := buildLimiter("x", config.ProviderConfig{
		RateLimit:  2,
		RateWindow: time.Minute,
	}, cfg, nil, nil)
	if l == nil {
		t.Fatal("buildLimiter() = nil, want in-process limiter")
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if d := l.Allow(ctx, "x"); !d.Allowed {
			t.Fatalf("Allow() call %d = false, want true", i+1)
		}
	}
	if d := l.Allow(ctx, "x"); d.Allowed {
		t.Error("Allow() = true after window exhausted, want false")
	}
}

func TestBuildFeeds(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Feeds.HostFeeds = []config.HostFeedConfig{
		{Name: "openphish", URL: "https://feed.example/hosts.txt", Category: "phishing"},
	}

	built := buildFeeds(cfg)
	if len(built) != 2 {
		t.Fatalf("len(buildFeeds()) = %v, want 2", len(built))
	}

	names := make(map[string]bool)
	for _, f := range built {
		names[f.Name()] = true
	}
	if !names["urlhaus"] || !names["openphish"] {
		t.Errorf("feed names = %v, want urlhaus and openphish", names)
	}

	var _ []feeds.Feed = built
}

func TestNewDaemonCmdFlags(t *testing.T) {
	t.Parallel()

	cmd := newDaemonCmd()
	if cmd == nil {
		t.Fatal("newDaemonCmd() returned nil")
	}

	for _, flag := range []string{"data-dir", "nats-url", "http-addr", "redis-addr", "feeds-update"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("flag %s not registered", flag)
		}
	}

	if f := cmd.Flags().Lookup("nats-url"); f != nil && f.DefValue != "nats://localhost:4222" {
		t.Errorf("nats-url default = %q, want nats://localhost:4222", f.DefValue)
	}
}

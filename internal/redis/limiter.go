// ABOUTME: Redis-backed fixed-window rate limiter shared across daemon replicas
// ABOUTME: INCR plus window expiry in one Lua script keeps check-and-consume atomic

package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/quota"
)

// limitScript increments the window counter and sets its expiry when
// the window is fresh. Returns the count and the remaining window TTL
// in milliseconds.
var limitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// LimiterConfig holds configuration for the shared rate limiter.
type LimiterConfig struct {
	// Limit is the number of calls allowed per window.
	Limit int64

	// Window is the fixed window length.
	Window time.Duration

	// FailOpen allows the call when Redis is unreachable. The local
	// per-provider breaker still bounds damage; refusing every call on
	// a Redis outage would silence scanning entirely.
	FailOpen bool

	// Logger for limiter errors.
	Logger *slog.Logger
}

// Limiter is a fixed-window rate limiter backed by Redis, so the
// window is shared by every daemon replica in a deployment.
type Limiter struct {
	client   *Client
	limit    int64
	window   time.Duration
	failOpen bool
	logger   *slog.Logger
}

// NewLimiter creates a shared rate limiter over an existing client.
func NewLimiter(client *Client, cfg LimiterConfig) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Limiter{
		client:   client,
		limit:    cfg.Limit,
		window:   cfg.Window,
		failOpen: cfg.FailOpen,
		logger:   cfg.Logger,
	}
}

// Allow consumes one call from the key's current window and reports
// the decision. Satisfies the provider Limiter interface.
func (l *Limiter) Allow(ctx context.Context, key string) quota.Decision {
	redisKey := l.client.PrefixedKey("rl:" + key)

	res, err := limitScript.Run(ctx, l.client.raw(), []string{redisKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Warn("rate limit check failed", "key", key, "error", err)
		return quota.Decision{Allowed: l.failOpen}
	}

	count, ttlMs := res[0], res[1]
	resetAt := time.Now().Add(time.Duration(ttlMs) * time.Millisecond)

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return quota.Decision{
		Allowed:   count <= l.limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
}

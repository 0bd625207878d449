// ABOUTME: Resilient client wrapping a provider with quota, rate limit, breaker, and timeout
// ABOUTME: Failures become error-tagged results; a provider call never propagates an error

package provider

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/quota"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/resilience"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// Limiter gates calls through a fixed-window rate limit. Both the
// in-process and the Redis-backed limiter satisfy this.
type Limiter interface {
	Allow(ctx context.Context, key string) quota.Decision
}

// LimiterFunc adapts a function to the Limiter interface.
type LimiterFunc func(ctx context.Context, key string) quota.Decision

func (f LimiterFunc) Allow(ctx context.Context, key string) quota.Decision {
	return f(ctx, key)
}

// ClientConfig holds configuration for a resilient client.
type ClientConfig struct {
	// Provider is the wrapped provider. Required.
	Provider Provider

	// Breaker gates calls when the provider is unhealthy. Optional.
	Breaker *resilience.CircuitBreaker

	// RateLimiter bounds the call rate. Optional.
	RateLimiter Limiter

	// Quota tracks the monthly call budget. Optional.
	Quota *quota.Tracker

	// Timeout bounds each provider call. Defaults to 5s.
	Timeout time.Duration

	// Backoff retries transient call failures inside the breaker-guarded
	// call. Nil disables retries.
	Backoff *resilience.BackoffConfig

	// Metrics records call outcomes. Optional.
	Metrics *observability.Metrics

	// Logger for call failures.
	Logger *slog.Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Client wraps a provider with the resilience chain. Gating runs in
// order: quota, then rate limit, then breaker-guarded call. Each layer
// that rejects tags the result with its own error kind so the
// aggregator and the metrics can tell the failure modes apart.
type Client struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
	limiter  Limiter
	quota    *quota.Tracker
	timeout  time.Duration
	backoff  *resilience.BackoffConfig
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewClient creates a resilient client around a provider.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		provider: cfg.Provider,
		breaker:  cfg.Breaker,
		limiter:  cfg.RateLimiter,
		quota:    cfg.Quota,
		timeout:  cfg.Timeout,
		backoff:  cfg.Backoff,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Clock,
	}
}

// Name returns the wrapped provider's identifier.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Scan checks the URL through the full resilience chain. The returned
// result always names the provider; on failure it carries an error kind
// and unknown severity instead of an error value.
func (c *Client) Scan(ctx context.Context, rawURL string) types.ProviderResult {
	start := c.now()
	name := c.provider.Name()

	if c.quota != nil {
		if err := c.quota.Consume(name); err != nil {
			return c.reject(name, types.ErrorKindQuotaExceeded, start)
		}
	}

	if c.limiter != nil {
		decision := c.limiter.Allow(ctx, name)
		if !decision.Allowed {
			if c.metrics != nil {
				c.metrics.RecordRateLimited(name)
			}
			return c.reject(name, types.ErrorKindRateLimited, start)
		}
	}

	var assessment Assessment
	attempt := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		a, err := c.provider.Check(callCtx, rawURL)
		if err != nil {
			return err
		}
		assessment = a
		return nil
	}

	// Retries live inside the breaker-guarded call so the breaker sees
	// one outcome per scan, not one per attempt.
	call := attempt
	if c.backoff != nil {
		call = func(ctx context.Context) error {
			return resilience.Retry(ctx, *c.backoff, retryableCallError, attempt)
		}
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	elapsed := c.now().Sub(start)
	if err != nil {
		kind := classifyError(err)
		// HTTP client errors embed the request URL, which can carry
		// credential query parameters.
		c.logger.Warn("provider call failed",
			"provider", name,
			"error_kind", string(kind),
			"error", observability.RedactSensitive(err.Error()))
		if c.metrics != nil {
			c.metrics.RecordProviderResult(name, string(kind), elapsed.Seconds())
		}
		return types.ErrorResult(name, kind, elapsed)
	}

	result := types.ProviderResult{
		Provider:   name,
		Severity:   assessment.Severity,
		RawVerdict: assessment.RawVerdict,
		LatencyMs:  float64(elapsed.Microseconds()) / 1000,
	}
	if c.metrics != nil {
		c.metrics.RecordProviderResult(name, assessment.Severity.String(), elapsed.Seconds())
	}
	return result
}

// reject builds an error result for a layer that refused the call
// before it reached the network.
func (c *Client) reject(name string, kind types.ErrorKind, start time.Time) types.ProviderResult {
	elapsed := c.now().Sub(start)
	c.logger.Debug("provider call rejected",
		"provider", name,
		"error_kind", string(kind))
	if c.metrics != nil {
		c.metrics.RecordProviderResult(name, string(kind), elapsed.Seconds())
	}
	return types.ErrorResult(name, kind, elapsed)
}

// retryableCallError reports whether a call failure is worth another
// attempt. A cancelled caller is not.
func retryableCallError(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// classifyError maps a call failure onto an error kind.
func classifyError(err error) types.ErrorKind {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return types.ErrorKindCircuitOpen
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return types.ErrorKindTimeout
	}
	return types.ErrorKindProtocol
}

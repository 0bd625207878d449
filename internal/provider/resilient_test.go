// ABOUTME: Tests for the resilient client decorator
// ABOUTME: Covers gating order, error kind tagging, and breaker interaction

package provider

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/quota"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/resilience"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// stubProvider returns a canned assessment or error and counts calls.
type stubProvider struct {
	name       string
	assessment Assessment
	err        error
	calls      int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Check(ctx context.Context, rawURL string) (Assessment, error) {
	p.calls++
	if p.err != nil {
		return Assessment{}, p.err
	}
	return p.assessment, nil
}

func TestClientScanSuccess(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{
		name:       "stub",
		assessment: Assessment{Severity: types.SeverityMalicious, RawVerdict: "malware"},
	}
	c := NewClient(ClientConfig{Provider: stub})

	result := c.Scan(context.Background(), "https://example.com/x")

	if result.Provider != "stub" {
		t.Errorf("Provider = %v, want stub", result.Provider)
	}
	if result.Severity != types.SeverityMalicious {
		t.Errorf("Severity = %v, want %v", result.Severity, types.SeverityMalicious)
	}
	if result.RawVerdict != "malware" {
		t.Errorf("RawVerdict = %v, want malware", result.RawVerdict)
	}
	if result.Failed() {
		t.Errorf("Failed() = true, want false")
	}
}

func TestClientScanQuotaExceeded(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{name: "stub", assessment: Assessment{Severity: types.SeverityBenign}}
	tracker := quota.NewTracker(quota.TrackerConfig{Budgets: map[string]int64{"stub": 1}})
	c := NewClient(ClientConfig{Provider: stub, Quota: tracker})
	ctx := context.Background()

	if result := c.Scan(ctx, "https://example.com/a"); result.Failed() {
		t.Fatalf("first scan failed: %v", result.Err)
	}

	result := c.Scan(ctx, "https://example.com/b")
	if result.Err != types.ErrorKindQuotaExceeded {
		t.Errorf("Err = %v, want %v", result.Err, types.ErrorKindQuotaExceeded)
	}
	if result.Severity != types.SeverityUnknown {
		t.Errorf("Severity = %v, want unknown", result.Severity)
	}
	if stub.calls != 1 {
		t.Errorf("provider calls = %v, want 1 (quota must gate before the call)", stub.calls)
	}
}

func TestClientScanRateLimited(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{name: "stub", assessment: Assessment{Severity: types.SeverityBenign}}
	denied := LimiterFunc(func(ctx context.Context, key string) quota.Decision {
		return quota.Decision{Allowed: false}
	})
	c := NewClient(ClientConfig{Provider: stub, RateLimiter: denied})

	result := c.Scan(context.Background(), "https://example.com/x")
	if result.Err != types.ErrorKindRateLimited {
		t.Errorf("Err = %v, want %v", result.Err, types.ErrorKindRateLimited)
	}
	if stub.calls != 0 {
		t.Errorf("provider calls = %v, want 0", stub.calls)
	}
}

func TestClientScanCircuitOpen(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{name: "stub", err: errors.New("remote down")}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "stub",
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	c := NewClient(ClientConfig{Provider: stub, Breaker: breaker})
	ctx := context.Background()

	// First call fails and trips the breaker.
	result := c.Scan(ctx, "https://example.com/x")
	if result.Err != types.ErrorKindProtocol {
		t.Errorf("Err = %v, want %v", result.Err, types.ErrorKindProtocol)
	}

	// Second call is rejected without reaching the provider.
	result = c.Scan(ctx, "https://example.com/x")
	if result.Err != types.ErrorKindCircuitOpen {
		t.Errorf("Err = %v, want %v", result.Err, types.ErrorKindCircuitOpen)
	}
	if stub.calls != 1 {
		t.Errorf("provider calls = %v, want 1", stub.calls)
	}
}

func TestClientScanTimeout(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{name: "stub", err: context.DeadlineExceeded}
	c := NewClient(ClientConfig{Provider: stub})

	result := c.Scan(context.Background(), "https://example.com/x")
	if result.Err != types.ErrorKindTimeout {
		t.Errorf("Err = %v, want %v", result.Err, types.ErrorKindTimeout)
	}
}

func TestClientScanNeverReturnsRawError(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{name: "stub", err: errors.New("boom")}
	c := NewClient(ClientConfig{Provider: stub})

	result := c.Scan(context.Background(), "https://example.com/x")
	if !result.Failed() {
		t.Error("Failed() = false for erroring provider, want true")
	}
	if result.Contributed() {
		t.Error("Contributed() = true for erroring provider, want false")
	}
}

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	name      string
	failFirst int
	calls     int
}

func (p *flakyProvider) Name() string { return p.name }

func (p *flakyProvider) Check(ctx context.Context, rawURL string) (Assessment, error) {
	p.calls++
	if p.calls <= p.failFirst {
		return Assessment{}, errors.New("transient failure")
	}
	return Assessment{Severity: types.SeverityBenign}, nil
}

func TestClientScanRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	flaky := &flakyProvider{name: "stub", failFirst: 2}
	c := NewClient(ClientConfig{
		Provider: flaky,
		Backoff: &resilience.BackoffConfig{
			MaxRetries:   3,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
	})

	result := c.Scan(context.Background(), "https://example.com/x")
	if result.Failed() {
		t.Fatalf("Scan() failed after retries: %v", result.Err)
	}
	if flaky.calls != 3 {
		t.Errorf("provider calls = %v, want 3", flaky.calls)
	}
}

func TestClientScanRetriesExhausted(t *testing.T) {
	t.Parallel()

	flaky := &flakyProvider{name: "stub", failFirst: 10}
	c := NewClient(ClientConfig{
		Provider: flaky,
		Backoff: &resilience.BackoffConfig{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
	})

	result := c.Scan(context.Background(), "https://example.com/x")
	if result.Err != types.ErrorKindProtocol {
		t.Errorf("Err = %v, want %v", result.Err, types.ErrorKindProtocol)
	}
	if flaky.calls != 3 {
		t.Errorf("provider calls = %v, want 3 (initial + 2 retries)", flaky.calls)
	}
}

func TestClientScanLogsRedactedError(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{
		name: "stub",
		err:  errors.New(`Get "https://rep.example/check?api_key=sk-livekey99": connection refused`),
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := NewClient(ClientConfig{Provider: stub, Logger: logger})

	if result := c.Scan(context.Background(), "https://example.com/x"); !result.Failed() {
		t.Fatal("Failed() = false for erroring provider, want true")
	}

	logged := buf.String()
	if strings.Contains(logged, "sk-livekey99") {
		t.Errorf("log output contains the credential: %q", logged)
	}
	if !strings.Contains(logged, observability.RedactionPlaceholder) {
		t.Errorf("log output %q does not contain the redaction placeholder", logged)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"circuit open", resilience.ErrCircuitOpen, types.ErrorKindCircuitOpen},
		{"deadline", context.DeadlineExceeded, types.ErrorKindTimeout},
		{"wrapped deadline", errors.Join(errors.New("call"), context.DeadlineExceeded), types.ErrorKindTimeout},
		{"other", errors.New("bad json"), types.ErrorKindProtocol},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

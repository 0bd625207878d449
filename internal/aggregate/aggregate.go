// ABOUTME: Concurrent provider fan-out and verdict aggregation with fixed precedence
// ABOUTME: Malicious beats suspicious beats benign; no usable signal fails safe to WARN

package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// Scanner is a provider wrapped in its resilience chain. Scan never
// returns an error; failures arrive as error-tagged results.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, rawURL string) types.ProviderResult
}

// Severity weights for the verdict score.
const (
	weightMalicious  = 1.0
	weightSuspicious = 0.6
	weightBenign     = 0.0

	// scoreNoSignal is reported when no provider contributed.
	scoreNoSignal = 0.5
)

// Config holds configuration for the aggregator.
type Config struct {
	// Clients are the providers to fan out to. Required.
	Clients []Scanner

	// Timeout bounds the whole fan-out. Defaults to 10s.
	Timeout time.Duration

	// Metrics records verdict outcomes. Optional.
	Metrics *observability.Metrics

	// Logger for aggregation events.
	Logger *slog.Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Aggregator fans a URL out to every provider concurrently and folds
// the results into a single verdict.
type Aggregator struct {
	clients []Scanner
	timeout time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an aggregator.
func New(cfg Config) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Aggregator{
		clients: cfg.Clients,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     cfg.Clock,
	}
}

// Scan checks the URL with every provider and aggregates the outcomes.
// The returned results slice holds one entry per configured provider in
// configuration order.
func (a *Aggregator) Scan(ctx context.Context, rawURL string) (types.Verdict, []types.ProviderResult) {
	fanCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]types.ProviderResult, len(a.clients))

	var wg sync.WaitGroup
	for i, client := range a.clients {
		wg.Add(1)
		go func(i int, client Scanner) {
			defer wg.Done()
			results[i] = client.Scan(fanCtx, rawURL)
		}(i, client)
	}
	wg.Wait()

	verdict := a.fold(results)

	if a.metrics != nil {
		a.metrics.RecordVerdict(verdict.Severity.String())
	}
	a.logger.Debug("verdict computed",
		"severity", verdict.Severity.String(),
		"contributors", len(verdict.ContributingProviders),
		"score", verdict.Score)

	return verdict, results
}

// fold applies the precedence rules over the collected results.
func (a *Aggregator) fold(results []types.ProviderResult) types.Verdict {
	by, counts := partition(results)

	verdict := types.Verdict{ComputedAt: a.now()}

	switch {
	case counts[types.SeverityMalicious] > 0:
		verdict.Severity = types.VerdictDeny
		verdict.ContributingProviders = by[types.SeverityMalicious]
	case counts[types.SeveritySuspicious] > 0:
		verdict.Severity = types.VerdictWarn
		verdict.ContributingProviders = by[types.SeveritySuspicious]
	case counts[types.SeverityBenign] > 0:
		verdict.Severity = types.VerdictSafe
		verdict.ContributingProviders = by[types.SeverityBenign]
	default:
		// No provider produced a usable signal. Warning with zero
		// contributors is the safe default for an unvetted URL.
		verdict.Severity = types.VerdictWarn
		verdict.Score = scoreNoSignal
		return verdict
	}

	verdict.Score = score(results)
	return verdict
}

// partition groups contributing provider names by severity.
func partition(results []types.ProviderResult) (map[types.Severity][]string, map[types.Severity]int) {
	by := make(map[types.Severity][]string)
	counts := make(map[types.Severity]int)
	for _, r := range results {
		if !r.Contributed() {
			continue
		}
		by[r.Severity] = append(by[r.Severity], r.Provider)
		counts[r.Severity]++
	}
	return by, counts
}

// score averages severity weights over every contributing result.
func score(results []types.ProviderResult) float64 {
	var sum float64
	var n int
	for _, r := range results {
		if !r.Contributed() {
			continue
		}
		n++
		switch r.Severity {
		case types.SeverityMalicious:
			sum += weightMalicious
		case types.SeveritySuspicious:
			sum += weightSuspicious
		case types.SeverityBenign:
			sum += weightBenign
		}
	}
	if n == 0 {
		return scoreNoSignal
	}
	return sum / float64(n)
}

// ABOUTME: Scan orchestrator: validation, identifier hashing, dedup, caching, fan-out, persistence
// ABOUTME: Raw chat and message identifiers are hashed here and never travel further

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/aggregate"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// ScanOutcome is the result of submitting a scan request.
type ScanOutcome struct {
	// Verdict is the aggregated verdict for the request's URL.
	Verdict types.Verdict

	// Key identifies the persisted record.
	Key types.HashedKey

	// Duplicate is true when a live record already existed for the
	// message; no provider calls were made.
	Duplicate bool

	// FromCache is true when the verdict came from the verdict cache.
	FromCache bool

	// Notify is false when the verdict needs no notification or the
	// chat is muted. Muting suppresses notifications only; scanning
	// and persistence still happen.
	Notify bool

	// Results holds the per-provider outcomes when providers ran.
	Results []types.ProviderResult
}

// Config holds configuration for the orchestrator.
type Config struct {
	// Aggregator fans scans out to the providers. Required.
	Aggregator *aggregate.Aggregator

	// Records persists hashed message records. Required.
	Records *store.RecordStore

	// Groups tracks chat membership and mute state. Required.
	Groups *store.GroupStore

	// VerdictCache caches verdicts by URL hash. Optional.
	VerdictCache *store.VerdictCache

	// Metrics records scan outcomes. Optional.
	Metrics *observability.Metrics

	// Logger for scan events.
	Logger *slog.Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator drives the scan pipeline end to end.
type Orchestrator struct {
	aggregator *aggregate.Aggregator
	records    *store.RecordStore
	groups     *store.GroupStore
	cache      *store.VerdictCache
	metrics    *observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if cfg.Records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if cfg.Groups == nil {
		return nil, fmt.Errorf("group store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		aggregator: cfg.Aggregator,
		records:    cfg.Records,
		groups:     cfg.Groups,
		cache:      cfg.VerdictCache,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		now:        cfg.Clock,
	}, nil
}

// SubmitScan runs the full pipeline for one scan request: validate,
// hash identifiers, dedup against the record store, resolve a verdict
// (cache or provider fan-out), persist, and decide on notification.
func (o *Orchestrator) SubmitScan(ctx context.Context, req types.ScanRequest) (*ScanOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan request: %w", err)
	}

	ctx, correlationID := observability.EnsureCorrelationID(ctx)
	ctx, span := observability.StartSpan(ctx, "orchestrator.SubmitScan")
	defer span.End()

	start := o.now()
	if o.metrics != nil {
		o.metrics.IncActiveScans()
		defer o.metrics.DecActiveScans()
	}

	// Raw identifiers stop here.
	key := types.NewHashedKey(req.ChatID, req.MessageID)
	urlHash := types.HashIdentifier(types.NamespaceURL, req.URL)
	span.SetAttributes(
		attribute.String("scan.url_hash", observability.TruncateDigest(urlHash)),
		attribute.String("correlation_id", correlationID.String()),
	)

	logger := o.logger.With(
		"correlation_id", correlationID.String(),
		observability.IdentifierAttr("chat_id", types.NamespaceChat, req.ChatID),
		observability.IdentifierAttr("message_id", types.NamespaceMessage, req.MessageID),
		observability.DigestAttr("url_hash", urlHash),
	)

	if existing, found, err := o.records.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("checking for duplicate: %w", err)
	} else if found {
		if o.metrics != nil {
			o.metrics.RecordDuplicate()
		}
		logger.Debug("duplicate scan suppressed")

		outcome := &ScanOutcome{Key: key, Duplicate: true}
		if existing.Verdict != nil {
			outcome.Verdict = *existing.Verdict
		}
		return outcome, nil
	}

	verdict, results, fromCache, err := o.resolveVerdict(ctx, req.URL, urlHash)
	if err != nil {
		return nil, err
	}

	record := &store.HashedRecord{
		HashedChatID:    key.Chat,
		HashedMessageID: key.Message,
		SenderIDHash:    req.SenderIDHash,
		NormalizedURLs:  []string{types.NormalizeURL(req.URL)},
		URLHashes:       []string{urlHash},
		Verdict:         &verdict,
	}
	created, err := o.records.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("persisting record: %w", err)
	}
	if created && o.metrics != nil {
		o.metrics.RecordWrite()
	}

	muted, err := o.groups.IsMuted(ctx, key.Chat)
	if err != nil {
		return nil, fmt.Errorf("checking mute state: %w", err)
	}

	outcome := &ScanOutcome{
		Verdict:   verdict,
		Key:       key,
		Duplicate: !created,
		FromCache: fromCache,
		Notify:    verdict.Severity != types.VerdictSafe && !muted,
		Results:   results,
	}

	if o.metrics != nil {
		o.metrics.ObserveScanDuration(o.now().Sub(start).Seconds())
	}
	logger.Info("scan completed",
		"severity", verdict.Severity.String(),
		"contributors", len(verdict.ContributingProviders),
		"from_cache", fromCache,
		"notify", outcome.Notify,
		"duration_ms", o.now().Sub(start).Milliseconds())

	return outcome, nil
}

// resolveVerdict consults the verdict cache before fanning out to the
// providers, and fills the cache after a fresh aggregation.
func (o *Orchestrator) resolveVerdict(ctx context.Context, rawURL, urlHash string) (types.Verdict, []types.ProviderResult, bool, error) {
	if o.cache != nil {
		cached, found, err := o.cache.Get(ctx, urlHash)
		if err != nil {
			return types.Verdict{}, nil, false, fmt.Errorf("reading verdict cache: %w", err)
		}
		if found {
			return *cached, nil, true, nil
		}
	}

	verdict, results := o.aggregator.Scan(ctx, rawURL)

	if o.cache != nil {
		if err := o.cache.Put(ctx, urlHash, verdict); err != nil {
			// Cache failures degrade to repeated fan-outs.
			o.logger.Warn("caching verdict failed", "error", err)
		}
	}

	return verdict, results, false, nil
}

// RecordJoin marks a chat as joined. The raw identifier is hashed here.
func (o *Orchestrator) RecordJoin(ctx context.Context, rawChatID string) error {
	return o.groups.RecordJoin(ctx, types.HashIdentifier(types.NamespaceChat, rawChatID))
}

// RecordLeave marks a chat as left.
func (o *Orchestrator) RecordLeave(ctx context.Context, rawChatID string) error {
	return o.groups.RecordLeave(ctx, types.HashIdentifier(types.NamespaceChat, rawChatID))
}

// MuteChat suppresses notifications for a chat until the given time.
func (o *Orchestrator) MuteChat(ctx context.Context, rawChatID string, until time.Time) error {
	return o.groups.Mute(ctx, types.HashIdentifier(types.NamespaceChat, rawChatID), until)
}

// UnmuteChat clears a chat's mute window.
func (o *Orchestrator) UnmuteChat(ctx context.Context, rawChatID string) error {
	return o.groups.Unmute(ctx, types.HashIdentifier(types.NamespaceChat, rawChatID))
}

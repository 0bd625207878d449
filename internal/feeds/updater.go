// ABOUTME: Periodic feed updater importing blocklist entries into the lookup engine
// ABOUTME: Each cycle fetches every feed with retry, imports, and rebuilds the bloom filter

package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/resilience"
)

// UpdaterConfig holds configuration for the feed updater.
type UpdaterConfig struct {
	// Feeds to refresh each cycle. Required.
	Feeds []Feed

	// Engine receives the imported entries. Required.
	Engine *blocklist.Engine

	// Interval between refresh cycles. Defaults to 1h.
	Interval time.Duration

	// Backoff configures per-feed fetch retries.
	Backoff resilience.BackoffConfig

	// Logger for update events.
	Logger *slog.Logger
}

// UpdateStatus summarizes the most recent refresh cycle.
type UpdateStatus struct {
	LastRun     time.Time
	LastSuccess time.Time
	Imported    int
	FeedErrors  map[string]string
}

// Updater refreshes the blocklist from its feeds on an interval.
type Updater struct {
	feeds    []Feed
	engine   *blocklist.Engine
	interval time.Duration
	backoff  resilience.BackoffConfig
	logger   *slog.Logger

	mu     sync.Mutex
	status UpdateStatus

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewUpdater creates a feed updater.
func NewUpdater(cfg UpdaterConfig) (*Updater, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Updater{
		feeds:    cfg.Feeds,
		engine:   cfg.Engine,
		interval: cfg.Interval,
		backoff:  cfg.Backoff,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start launches the refresh loop. The first cycle runs immediately.
func (u *Updater) Start(ctx context.Context) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		u.RunOnce(ctx)

		ticker := time.NewTicker(u.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				u.RunOnce(ctx)
			case <-u.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the refresh loop and waits for an in-flight cycle.
func (u *Updater) Stop() {
	u.stopOnce.Do(func() { close(u.stopCh) })
	u.wg.Wait()
}

// RunOnce refreshes every feed a single time. Feed failures are
// recorded and skipped; one broken feed must not starve the others.
func (u *Updater) RunOnce(ctx context.Context) {
	start := time.Now()
	imported := 0
	feedErrors := make(map[string]string)

	for _, feed := range u.feeds {
		if ctx.Err() != nil {
			return
		}

		entries, err := u.fetchWithRetry(ctx, feed)
		if err != nil {
			u.logger.Error("feed fetch failed",
				slog.String("feed", feed.Name()),
				slog.Any("error", err))
			feedErrors[feed.Name()] = err.Error()
			continue
		}

		stored, err := u.engine.Import(ctx, entries)
		if err != nil {
			u.logger.Error("feed import failed",
				slog.String("feed", feed.Name()),
				slog.Any("error", err))
			feedErrors[feed.Name()] = err.Error()
			continue
		}

		imported += stored
		u.logger.Info("feed refreshed",
			slog.String("feed", feed.Name()),
			slog.Int("entries", stored))
	}

	if imported > 0 {
		if err := u.engine.RebuildBloomFilter(ctx); err != nil {
			u.logger.Error("bloom rebuild failed", slog.Any("error", err))
		}
	}

	u.mu.Lock()
	u.status.LastRun = start
	u.status.Imported = imported
	u.status.FeedErrors = feedErrors
	if len(feedErrors) == 0 {
		u.status.LastSuccess = start
	}
	u.mu.Unlock()

	u.logger.Info("blocklist refresh cycle complete",
		slog.Int("imported", imported),
		slog.Int("failed_feeds", len(feedErrors)),
		slog.Duration("duration", time.Since(start)))
}

// fetchWithRetry fetches one feed, retrying transient failures.
func (u *Updater) fetchWithRetry(ctx context.Context, feed Feed) ([]*blocklist.Entry, error) {
	var entries []*blocklist.Entry
	err := resilience.Retry(ctx, u.backoff, nil, func(ctx context.Context) error {
		var fetchErr error
		entries, fetchErr = feed.Fetch(ctx)
		return fetchErr
	})
	return entries, err
}

// Status returns the most recent cycle summary.
func (u *Updater) Status() UpdateStatus {
	u.mu.Lock()
	defer u.mu.Unlock()

	status := u.status
	status.FeedErrors = make(map[string]string, len(u.status.FeedErrors))
	for k, v := range u.status.FeedErrors {
		status.FeedErrors[k] = v
	}
	return status
}

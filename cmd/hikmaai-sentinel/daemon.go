// ABOUTME: Daemon command for running hikmaai-sentinel as a service
// ABOUTME: Wires stores, providers, feeds, NATS messaging, and the HTTP API

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/aggregate"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/api"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/config"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/feeds"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/orchestrator"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/provider"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/queue"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/quota"
	internalredis "github.com/hikmaai-io/hikmaai-sentinel/internal/redis"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/resilience"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
)

func newDaemonCmd() *cobra.Command {
	var (
		background bool
		dataDir    string
		natsURL    string
		httpAddr   string
		redisAddr  string
		feedUpdate bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the URL verdict daemon",
		Long: `Start the HikmaSentinel daemon that listens for scan requests via NATS
and provides an admin API with health/metrics endpoints via HTTP.

In foreground mode (default), the daemon runs in the current terminal.
Use --background to daemonize the process.

Blocklist feed updates can be enabled to periodically refresh the local
indicator store while the daemon is running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				return fmt.Errorf("background mode not yet implemented")
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			// Flags override the config file.
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("nats-url") {
				cfg.NATS.URL = natsURL
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTP.Addr = httpAddr
			}
			if cmd.Flags().Changed("redis-addr") {
				cfg.Redis.Addr = redisAddr
			}
			if cmd.Flags().Changed("feeds-update") {
				cfg.Feeds.Enabled = feedUpdate
			}
			cfg.Log.Level = logLevel
			cfg.Log.Format = logFormat

			return runDaemon(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolVar(&background, "background", false, "run as a background daemon")
	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "data directory for BadgerDB stores")
	cmd.Flags().StringVar(&natsURL, "nats-url", "nats://localhost:4222", "NATS server URL")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP address for the admin API")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the shared rate limiter")
	cmd.Flags().BoolVar(&feedUpdate, "feeds-update", false, "enable periodic blocklist feed updates")

	return cmd
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	// Set up logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "hikmaai-sentinel",
		Version:     version,
	}, os.Stdout)

	slog.SetDefault(logger)
	logger.Info("starting hikmaai-sentinel daemon",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("http_addr", cfg.HTTP.Addr),
	)

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Set up tracing.
	tracer, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Enabled:       cfg.Tracing.Enabled,
		ServiceName:   "hikmaai-sentinel",
		Version:       version,
		Endpoint:      cfg.Tracing.Endpoint,
		Insecure:      cfg.Tracing.Insecure,
		SamplingRatio: cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	// Open the stores.
	records, err := store.NewRecordStore(store.RecordStoreConfig{
		Store: store.Config{Path: filepath.Join(cfg.DataDir, "records")},
		TTL:   cfg.Records.TTL,
	})
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	defer records.Close()

	groups, err := store.NewGroupStore(store.GroupStoreConfig{
		Store: store.Config{Path: filepath.Join(cfg.DataDir, "groups")},
	})
	if err != nil {
		return fmt.Errorf("opening group store: %w", err)
	}
	defer groups.Close()

	verdictCache, err := store.NewVerdictCache(store.VerdictCacheConfig{
		Store: store.Config{Path: filepath.Join(cfg.DataDir, "verdicts")},
		TTL:   cfg.Records.VerdictCacheTTL,
	})
	if err != nil {
		return fmt.Errorf("opening verdict cache: %w", err)
	}
	defer verdictCache.Close()

	logger.Info("stores initialized")

	// Create blocklist engine.
	engine, err := blocklist.NewEngine(blocklist.EngineConfig{
		StoreConfig: store.Config{Path: filepath.Join(cfg.DataDir, "blocklist")},
		BloomConfig: blocklist.BloomConfig{
			ExpectedItems:     10_000_000, // 10M indicators.
			FalsePositiveRate: 0.001,      // 0.1% false positive rate.
		},
		RebuildBloomOnStart: true,
	})
	if err != nil {
		return fmt.Errorf("creating blocklist engine: %w", err)
	}
	defer engine.Close()

	logger.Info("blocklist engine initialized")

	// Connect Redis for the shared rate limiter if configured.
	var redisClient *internalredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = internalredis.NewClient(internalredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	// Monthly quota tracker shared by all providers.
	tracker := quota.NewTracker(quota.TrackerConfig{
		Budgets:            cfg.Budgets(),
		OnExhaustionChange: metrics.SetQuotaAvailable,
	})

	// Build the resilient provider clients.
	clients, breakers, err := buildClients(cfg, engine, tracker, redisClient, metrics, logger)
	if err != nil {
		return err
	}
	if len(clients) == 0 {
		return fmt.Errorf("no providers enabled")
	}
	logger.Info("providers initialized", slog.Int("count", len(clients)))

	aggregator := aggregate.New(aggregate.Config{
		Clients: clients,
		Metrics: metrics,
		Logger:  logger,
	})

	orch, err := orchestrator.New(orchestrator.Config{
		Aggregator:   aggregator,
		Records:      records,
		Groups:       groups,
		VerdictCache: verdictCache,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	// Start the feed updater if enabled.
	var updater *feeds.Updater
	if cfg.Feeds.Enabled {
		updater, err = feeds.NewUpdater(feeds.UpdaterConfig{
			Feeds:    buildFeeds(cfg),
			Engine:   engine,
			Interval: cfg.Feeds.UpdateInterval,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("creating feed updater: %w", err)
		}
		updater.Start(workerCtx)
		defer updater.Stop()
		logger.Info("feed updater started",
			slog.Duration("interval", cfg.Feeds.UpdateInterval))
	}

	// Connect NATS and start the queue subscription if configured.
	var natsClient *queue.Client
	if cfg.NATS.URL != "" {
		natsCfg := queue.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		if cfg.NATS.Subject != "" {
			natsCfg.Subject = cfg.NATS.Subject
		}
		if cfg.NATS.Queue != "" {
			natsCfg.QueueGroup = cfg.NATS.Queue
		}

		natsClient, err = queue.NewClient(natsCfg, queue.NewHandler(orch), logger)
		if err != nil {
			return fmt.Errorf("creating NATS client: %w", err)
		}
		if err := natsClient.Connect(workerCtx); err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer natsClient.Close()

		if err := natsClient.Subscribe(workerCtx); err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
	}

	// Start the HTTP server if configured.
	var httpServer *http.Server
	if cfg.HTTP.Addr != "" {
		handlerCfg := api.HandlerConfig{
			Orchestrator: orch,
			Records:      records,
			VerdictCache: verdictCache,
			Engine:       engine,
			Breakers:     breakers,
			Logger:       logger,
		}
		if updater != nil {
			handlerCfg.FeedStatus = updater
		}
		handler := api.NewHandler(handlerCfg)

		mux := http.NewServeMux()
		handler.RegisterRoutes(mux)
		mux.Handle("GET /metrics", metrics.Handler())

		httpServer = &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: api.LoggingMiddleware(logger)(mux),
		}

		go func() {
			logger.Info("starting HTTP server", slog.String("addr", cfg.HTTP.Addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", slog.Any("error", err))
			}
		}()
	}

	// Wait for shutdown signal.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("daemon ready, waiting for requests")
	<-ctx.Done()

	logger.Info("shutting down daemon")

	// Graceful shutdown.
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", slog.Any("error", err))
		}
	}

	logger.Info("daemon stopped")

	return nil
}

// buildClients constructs one resilient client per enabled provider.
func buildClients(
	cfg *config.Config,
	engine *blocklist.Engine,
	tracker *quota.Tracker,
	redisClient *internalredis.Client,
	metrics *observability.Metrics,
	logger *slog.Logger,
) ([]aggregate.Scanner, []*resilience.CircuitBreaker, error) {
	var clients []aggregate.Scanner
	var breakers []*resilience.CircuitBreaker

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}

		p, err := buildProvider(name, pc, engine)
		if err != nil {
			return nil, nil, err
		}

		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             name,
			FailureThreshold: pc.Breaker.FailureThreshold,
			SuccessThreshold: pc.Breaker.SuccessThreshold,
			ResetTimeout:     pc.Breaker.ResetTimeout,
			FailureWindow:    pc.Breaker.FailureWindow,
			OnStateChange: func(name string, from, to resilience.State) {
				metrics.RecordBreakerTransition(name, from.String(), to.String())
			},
		})
		breakers = append(breakers, breaker)

		var backoff *resilience.BackoffConfig
		if pc.MaxRetries > 0 {
			backoff = &resilience.BackoffConfig{
				MaxRetries:     pc.MaxRetries,
				InitialDelay:   200 * time.Millisecond,
				MaxDelay:       2 * time.Second,
				Multiplier:     2.0,
				JitterFraction: 0.2,
			}
		}

		clients = append(clients, provider.NewClient(provider.ClientConfig{
			Provider:    p,
			Breaker:     breaker,
			RateLimiter: buildLimiter(name, pc, cfg, redisClient, logger),
			Quota:       tracker,
			Timeout:     pc.Timeout,
			Backoff:     backoff,
			Metrics:     metrics,
			Logger:      logger,
		}))
	}

	return clients, breakers, nil
}

// buildProvider constructs the raw provider for a config entry.
func buildProvider(name string, pc config.ProviderConfig, engine *blocklist.Engine) (provider.Provider, error) {
	httpCfg := provider.HTTPConfig{
		BaseURL: pc.BaseURL,
		APIKey:  pc.APIKey,
		Timeout: pc.Timeout,
	}

	switch name {
	case provider.MalwareListName:
		return provider.NewMalwareList(httpCfg), nil
	case provider.DomainRepName:
		return provider.NewDomainRep(httpCfg), nil
	case provider.DomainAgeName:
		return provider.NewDomainAge(provider.DomainAgeConfig{HTTP: httpCfg}), nil
	case provider.LocalBlocklistName:
		return provider.NewLocalBlocklist(engine), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// buildLimiter picks the rate limiter for a provider. With Redis the
// window is shared across replicas; without it a per-process fixed
// window still bounds the call rate.
func buildLimiter(name string, pc config.ProviderConfig, cfg *config.Config, redisClient *internalredis.Client, logger *slog.Logger) provider.Limiter {
	if pc.RateLimit <= 0 {
		return nil
	}

	if redisClient != nil {
		return internalredis.NewLimiter(redisClient, internalredis.LimiterConfig{
			Limit:    pc.RateLimit,
			Window:   pc.RateWindow,
			FailOpen: cfg.Redis.FailOpen,
			Logger:   logger,
		})
	}

	local := quota.NewRateLimiter(quota.RateLimiterConfig{
		Window:       pc.RateWindow,
		MaxPerWindow: int(pc.RateLimit),
	})
	return provider.LimiterFunc(func(ctx context.Context, key string) quota.Decision {
		return local.Allow(key)
	})
}

// buildFeeds assembles the blocklist feeds from the configuration.
func buildFeeds(cfg *config.Config) []feeds.Feed {
	urlFeed := feeds.NewURLFeed()
	if cfg.Feeds.URLFeedURL != "" {
		urlFeed.SetURL(cfg.Feeds.URLFeedURL)
	}

	out := []feeds.Feed{urlFeed}
	for _, hf := range cfg.Feeds.HostFeeds {
		out = append(out, feeds.NewHostFeed(hf.Name, hf.URL, hf.Category))
	}
	return out
}

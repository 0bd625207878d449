// ABOUTME: Configuration loading and defaults for hikmaai-sentinel
// ABOUTME: Handles YAML config files with per-provider budgets and limits

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete configuration for hikmaai-sentinel.
type Config struct {
	// Data directory for BadgerDB stores and the bloom filter.
	DataDir string `yaml:"data_dir"`

	// NATS configuration.
	NATS NATSConfig `yaml:"nats"`

	// HTTP server configuration.
	HTTP HTTPConfig `yaml:"http"`

	// Redis configuration for the shared rate limiter.
	Redis RedisConfig `yaml:"redis"`

	// Logging configuration.
	Log LogConfig `yaml:"log"`

	// Tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Feed configuration.
	Feeds FeedsConfig `yaml:"feeds"`

	// Providers configures the reputation providers.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Records configures the hashed record store.
	Records RecordsConfig `yaml:"records"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Queue   string `yaml:"queue"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// the shared limiter; providers then run unthrottled behind their
// breakers.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	FailOpen bool   `yaml:"fail_open"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// FeedsConfig holds blocklist feed settings.
type FeedsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	UpdateInterval time.Duration `yaml:"update_interval"`

	// URLFeedURL overrides the default URLhaus export URL.
	URLFeedURL string `yaml:"url_feed_url"`

	// HostFeeds lists additional plain-text hostname feeds.
	HostFeeds []HostFeedConfig `yaml:"host_feeds"`
}

// HostFeedConfig configures one hostname blocklist feed.
type HostFeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// ProviderConfig configures one reputation provider.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// Timeout bounds a single provider call.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries for transient call failures.
	// Zero disables retries.
	MaxRetries int `yaml:"max_retries"`

	// MonthlyBudget is the monthly call budget. Zero means unmetered.
	MonthlyBudget int64 `yaml:"monthly_budget"`

	// RateLimit is the number of calls per RateWindow. Zero disables
	// rate limiting for this provider.
	RateLimit  int64         `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`

	// Breaker configures the provider's circuit breaker.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	FailureWindow    time.Duration `yaml:"failure_window"`
}

// RecordsConfig holds record store settings.
type RecordsConfig struct {
	// TTL is the record retention window.
	TTL time.Duration `yaml:"ttl"`

	// VerdictCacheTTL is the URL verdict cache retention window.
	VerdictCacheTTL time.Duration `yaml:"verdict_cache_ttl"`
}

// DefaultConfig returns a Config with default values.
// All external dependencies (NATS, Redis, tracing) are disabled by
// default for standalone single-binary operation.
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		NATS: NATSConfig{
			// Disabled by default; set URL to enable
			URL:     "",
			Subject: "sentinel.scan",
			Queue:   "scan-workers",
		},
		HTTP: HTTPConfig{
			// Disabled by default; set Addr to enable (e.g., ":8080")
			Addr: "",
		},
		Redis: RedisConfig{
			Addr:     "",
			Prefix:   "sentinel:",
			FailOpen: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text", // Human-readable by default
		},
		Tracing: TracingConfig{
			Enabled:       false, // Disabled by default
			Endpoint:      "localhost:4317",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
		Feeds: FeedsConfig{
			Enabled:        false,
			UpdateInterval: 1 * time.Hour,
		},
		Providers: map[string]ProviderConfig{
			"malwarelist": {
				Enabled:       false,
				Timeout:       5 * time.Second,
				MaxRetries:    2,
				MonthlyBudget: 15_000,
				RateLimit:     60,
				RateWindow:    time.Minute,
				Breaker:       DefaultBreakerConfig(),
			},
			"domainrep": {
				Enabled:       false,
				Timeout:       5 * time.Second,
				MaxRetries:    2,
				MonthlyBudget: 50_000,
				RateLimit:     120,
				RateWindow:    time.Minute,
				Breaker:       DefaultBreakerConfig(),
			},
			"domainage": {
				Enabled:       false,
				Timeout:       5 * time.Second,
				MaxRetries:    2,
				MonthlyBudget: 30_000,
				RateLimit:     60,
				RateWindow:    time.Minute,
				Breaker:       DefaultBreakerConfig(),
			},
			"blocklist": {
				// Local lookups cost nothing.
				Enabled: true,
				Breaker: DefaultBreakerConfig(),
			},
		},
		Records: RecordsConfig{
			TTL:             30 * 24 * time.Hour,
			VerdictCacheTTL: 1 * time.Hour,
		},
	}
}

// DefaultBreakerConfig returns default circuit breaker thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		FailureWindow:    1 * time.Minute,
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// loads the default path; a missing file at the default path is not an
// error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
		return fmt.Errorf("tracing sampling_ratio must be between 0 and 1")
	}
	if c.Records.TTL < 0 || c.Records.VerdictCacheTTL < 0 {
		return fmt.Errorf("record TTLs must not be negative")
	}
	for name, p := range c.Providers {
		if p.MonthlyBudget < 0 {
			return fmt.Errorf("provider %s: monthly_budget must not be negative", name)
		}
		if p.RateLimit < 0 {
			return fmt.Errorf("provider %s: rate_limit must not be negative", name)
		}
		if p.RateLimit > 0 && p.RateWindow <= 0 {
			return fmt.Errorf("provider %s: rate_window is required when rate_limit is set", name)
		}
		if p.Enabled && name != "blocklist" && p.BaseURL == "" {
			return fmt.Errorf("provider %s: base_url is required when enabled", name)
		}
	}
	for _, f := range c.Feeds.HostFeeds {
		if f.Name == "" || f.URL == "" {
			return fmt.Errorf("host feeds require a name and a url")
		}
	}
	return nil
}

// Budgets returns the monthly budget map for the quota tracker.
// Providers without a budget are omitted and run unmetered.
func (c *Config) Budgets() map[string]int64 {
	budgets := make(map[string]int64)
	for name, p := range c.Providers {
		if p.Enabled && p.MonthlyBudget > 0 {
			budgets[name] = p.MonthlyBudget
		}
	}
	return budgets
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	// Try XDG_DATA_HOME first.
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "hikmaai-sentinel")
	}

	// Fall back to home directory.
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/hikmaai-sentinel"
	}

	return filepath.Join(home, ".local", "share", "hikmaai-sentinel")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// Try XDG_CONFIG_HOME first.
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hikmaai-sentinel", "config.yaml")
	}

	// Fall back to home directory.
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/hikmaai-sentinel/config.yaml"
	}

	return filepath.Join(home, ".config", "hikmaai-sentinel", "config.yaml")
}

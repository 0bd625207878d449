// ABOUTME: Provider interface and shared HTTP client plumbing for reputation lookups
// ABOUTME: Provider-specific response shapes stay inside each client implementation

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// Assessment is a provider's raw judgment about a URL, before the
// resilience wrapper turns it into a ProviderResult.
type Assessment struct {
	// Severity is the normalized trust signal.
	Severity types.Severity

	// RawVerdict is the provider's own verdict label, kept for logging.
	RawVerdict string
}

// Provider performs a reputation check for a single URL.
type Provider interface {
	// Name returns the stable provider identifier.
	Name() string

	// Check looks up the URL. Implementations normalize their response
	// into an Assessment; transport and decoding failures surface as
	// errors for the resilience wrapper to classify.
	Check(ctx context.Context, rawURL string) (Assessment, error)
}

// HTTPConfig holds the shared knobs for HTTP-backed providers.
type HTTPConfig struct {
	// BaseURL of the provider API.
	BaseURL string

	// APIKey sent with each request.
	APIKey string

	// Timeout for HTTP requests.
	Timeout time.Duration

	// UserAgent for HTTP requests.
	UserAgent string
}

// DefaultHTTPConfig returns sensible default configuration.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:   5 * time.Second,
		UserAgent: "hikmaai-sentinel/1.0",
	}
}

// maxResponseSize bounds provider response bodies.
const maxResponseSize = 1 << 20

// httpClient is the shared transport used by the concrete providers.
type httpClient struct {
	client *http.Client
	config HTTPConfig
}

func newHTTPClient(cfg HTTPConfig) *httpClient {
	defaults := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	return &httpClient{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.doJSON(req, out)
}

// postJSON performs a POST request with a JSON body and decodes the
// JSON response into out.
func (c *httpClient) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *httpClient) doJSON(req *http.Request, out any) error {
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

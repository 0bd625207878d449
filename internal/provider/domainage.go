// ABOUTME: DomainAge provider client: flags freshly registered domains as suspicious
// ABOUTME: Registration date comes from a WHOIS-style API

package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// DomainAgeName is the stable identifier for this provider.
const DomainAgeName = "domainage"

// domainAgeResponse is the provider's response shape.
type domainAgeResponse struct {
	Domain    string `json:"domain"`
	CreatedAt string `json:"created_at"`
}

// DomainAgeConfig holds configuration for the domain age provider.
type DomainAgeConfig struct {
	HTTP HTTPConfig

	// MinAge is the registration age below which a domain is flagged
	// as suspicious.
	MinAge time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DomainAge is a client for a domain registration age service. New
// domains are a strong phishing signal; this provider never reports
// malicious on its own.
type DomainAge struct {
	http   *httpClient
	minAge time.Duration
	now    func() time.Time
}

// NewDomainAge creates a DomainAge client.
func NewDomainAge(cfg DomainAgeConfig) *DomainAge {
	if cfg.MinAge <= 0 {
		cfg.MinAge = 30 * 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &DomainAge{
		http:   newHTTPClient(cfg.HTTP),
		minAge: cfg.MinAge,
		now:    cfg.Clock,
	}
}

// Name returns the provider identifier.
func (p *DomainAge) Name() string {
	return DomainAgeName
}

// Check looks up the registration age of the URL's domain.
func (p *DomainAge) Check(ctx context.Context, rawURL string) (Assessment, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Assessment{}, fmt.Errorf("domainage: no host in %q", rawURL)
	}

	endpoint := p.http.config.BaseURL + "/v1/domain/" + url.PathEscape(u.Hostname())

	var resp domainAgeResponse
	if err := p.http.getJSON(ctx, endpoint, &resp); err != nil {
		return Assessment{}, fmt.Errorf("domainage lookup: %w", err)
	}

	if resp.CreatedAt == "" {
		return Assessment{Severity: types.SeverityUnknown, RawVerdict: "no_registration_date"}, nil
	}

	created, err := time.Parse(time.RFC3339, resp.CreatedAt)
	if err != nil {
		return Assessment{}, fmt.Errorf("domainage: parsing created_at %q: %w", resp.CreatedAt, err)
	}

	age := p.now().Sub(created)
	raw := fmt.Sprintf("age_days=%d", int(age.Hours()/24))
	if age < p.minAge {
		return Assessment{Severity: types.SeveritySuspicious, RawVerdict: raw}, nil
	}
	return Assessment{Severity: types.SeverityBenign, RawVerdict: raw}, nil
}

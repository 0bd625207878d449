// ABOUTME: DomainRep provider client: numeric domain reputation scores
// ABOUTME: Score thresholds map onto the closed severity set

package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// DomainRepName is the stable identifier for this provider.
const DomainRepName = "domainrep"

// domainRepResponse is the provider's response shape.
type domainRepResponse struct {
	Domain string `json:"domain"`
	// Score ranges 0 (worst) to 100 (best); nil when unscored.
	Score    *int   `json:"reputation_score"`
	Category string `json:"category,omitempty"`
}

// Score thresholds. At or below malicious is a confirmed bad domain;
// between the two is risky.
const (
	domainRepMaliciousBelow  = 30
	domainRepSuspiciousBelow = 60
)

// DomainRep is a client for a domain reputation scoring service.
type DomainRep struct {
	http *httpClient
}

// NewDomainRep creates a DomainRep client.
func NewDomainRep(cfg HTTPConfig) *DomainRep {
	return &DomainRep{http: newHTTPClient(cfg)}
}

// Name returns the provider identifier.
func (p *DomainRep) Name() string {
	return DomainRepName
}

// Check scores the URL's domain.
func (p *DomainRep) Check(ctx context.Context, rawURL string) (Assessment, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Assessment{}, fmt.Errorf("domainrep: no host in %q", rawURL)
	}

	endpoint := p.http.config.BaseURL + "/v1/reputation?domain=" + url.QueryEscape(u.Hostname())

	var resp domainRepResponse
	if err := p.http.getJSON(ctx, endpoint, &resp); err != nil {
		return Assessment{}, fmt.Errorf("domainrep lookup: %w", err)
	}

	if resp.Score == nil {
		return Assessment{Severity: types.SeverityUnknown, RawVerdict: "unscored"}, nil
	}

	score := *resp.Score
	raw := fmt.Sprintf("score=%d", score)
	switch {
	case score < domainRepMaliciousBelow:
		return Assessment{Severity: types.SeverityMalicious, RawVerdict: raw}, nil
	case score < domainRepSuspiciousBelow:
		return Assessment{Severity: types.SeveritySuspicious, RawVerdict: raw}, nil
	default:
		return Assessment{Severity: types.SeverityBenign, RawVerdict: raw}, nil
	}
}

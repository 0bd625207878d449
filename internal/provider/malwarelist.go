// ABOUTME: MalwareList provider client: URL lookup against a hosted malware database
// ABOUTME: Normalizes threat labels into the closed severity set

package provider

import (
	"context"
	"fmt"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// MalwareListName is the stable identifier for this provider.
const MalwareListName = "malwarelist"

// malwareListRequest is the lookup request payload.
type malwareListRequest struct {
	URL string `json:"url"`
}

// malwareListResponse is the provider's response shape. It never leaks
// past this package.
type malwareListResponse struct {
	Status string `json:"status"`
	Threat string `json:"threat"`
	Family string `json:"family,omitempty"`
}

// MalwareList is a client for a hosted malware URL database.
type MalwareList struct {
	http *httpClient
}

// NewMalwareList creates a MalwareList client.
func NewMalwareList(cfg HTTPConfig) *MalwareList {
	return &MalwareList{http: newHTTPClient(cfg)}
}

// Name returns the provider identifier.
func (p *MalwareList) Name() string {
	return MalwareListName
}

// Check looks up the URL in the malware database.
func (p *MalwareList) Check(ctx context.Context, rawURL string) (Assessment, error) {
	var resp malwareListResponse
	err := p.http.postJSON(ctx, p.http.config.BaseURL+"/v1/lookup", malwareListRequest{URL: rawURL}, &resp)
	if err != nil {
		return Assessment{}, fmt.Errorf("malwarelist lookup: %w", err)
	}

	if resp.Status != "ok" {
		return Assessment{}, fmt.Errorf("malwarelist lookup: status %q", resp.Status)
	}

	return Assessment{
		Severity:   normalizeThreat(resp.Threat),
		RawVerdict: resp.Threat,
	}, nil
}

// normalizeThreat maps the provider's threat labels to severities.
// Unrecognized labels become unknown rather than guessing.
func normalizeThreat(threat string) types.Severity {
	switch threat {
	case "malware", "phishing", "scam":
		return types.SeverityMalicious
	case "suspicious":
		return types.SeveritySuspicious
	case "none", "clean":
		return types.SeverityBenign
	default:
		return types.SeverityUnknown
	}
}

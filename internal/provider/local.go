// ABOUTME: Local blocklist provider backed by the two-tier lookup engine
// ABOUTME: Feed-sourced hits are malicious; misses carry no signal

package provider

import (
	"context"
	"fmt"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// LocalBlocklistName is the stable identifier for this provider.
const LocalBlocklistName = "blocklist"

// LocalBlocklist adapts the blocklist engine to the Provider interface.
// It costs nothing per lookup, so the orchestrator consults it without
// quota or rate limiting.
type LocalBlocklist struct {
	engine *blocklist.Engine
}

// NewLocalBlocklist creates a provider over the given engine.
func NewLocalBlocklist(engine *blocklist.Engine) *LocalBlocklist {
	return &LocalBlocklist{engine: engine}
}

// Name returns the provider identifier.
func (p *LocalBlocklist) Name() string {
	return LocalBlocklistName
}

// Check matches the URL against the local blocklist. A miss is unknown,
// not benign: absence from the feeds proves nothing.
func (p *LocalBlocklist) Check(ctx context.Context, rawURL string) (Assessment, error) {
	match, err := p.engine.Lookup(ctx, rawURL)
	if err != nil {
		return Assessment{}, fmt.Errorf("blocklist lookup: %w", err)
	}

	if !match.Matched {
		return Assessment{Severity: types.SeverityUnknown, RawVerdict: "not_listed"}, nil
	}

	raw := "listed"
	if match.Entry.Category != "" {
		raw = "listed:" + match.Entry.Category
	}
	return Assessment{Severity: types.SeverityMalicious, RawVerdict: raw}, nil
}

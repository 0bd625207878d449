// ABOUTME: Verdict type representing the final trust classification for a URL
// ABOUTME: Combines provider severities under fixed precedence with a weighted score

package types

import "time"

// VerdictSeverity is the final trust classification for a URL.
type VerdictSeverity int

const (
	// VerdictSafe means at least one provider confirmed the URL benign
	// and none flagged it.
	VerdictSafe VerdictSeverity = iota
	// VerdictWarn means a provider flagged the URL suspicious, or no
	// provider produced a usable signal.
	VerdictWarn
	// VerdictDeny means a provider confirmed the URL malicious.
	VerdictDeny
)

// String returns the string representation of the verdict severity.
func (v VerdictSeverity) String() string {
	switch v {
	case VerdictSafe:
		return "SAFE"
	case VerdictWarn:
		return "WARN"
	case VerdictDeny:
		return "DENY"
	default:
		return "WARN"
	}
}

// Verdict is the aggregated trust classification. Immutable once
// produced.
type Verdict struct {
	// Severity is the final classification.
	Severity VerdictSeverity `json:"severity"`

	// ContributingProviders lists providers that returned a usable
	// (non-unknown, non-error) signal.
	ContributingProviders []string `json:"contributing_providers"`

	// Score is a weighted count of non-unknown signals favoring
	// higher-severity ones.
	Score float64 `json:"score"`

	// ComputedAt is when the verdict was produced.
	ComputedAt time.Time `json:"computed_at"`
}

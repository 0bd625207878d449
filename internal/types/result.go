// ABOUTME: ProviderResult type for normalized reputation provider outcomes
// ABOUTME: Maps provider-specific verdicts into a closed severity set with error tagging

package types

import "time"

// Severity is the normalized trust signal from a single provider.
type Severity int

const (
	// SeverityUnknown means the provider gave no usable signal.
	SeverityUnknown Severity = iota
	// SeverityBenign means the provider considers the URL clean.
	SeverityBenign
	// SeveritySuspicious means the provider flagged the URL as risky.
	SeveritySuspicious
	// SeverityMalicious means the provider confirmed the URL as malicious.
	SeverityMalicious
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityBenign:
		return "benign"
	case SeveritySuspicious:
		return "suspicious"
	case SeverityMalicious:
		return "malicious"
	default:
		return "unknown"
	}
}

// ErrorKind classifies why a provider call produced no signal.
type ErrorKind string

const (
	// ErrorKindNone means the call completed normally.
	ErrorKindNone ErrorKind = ""
	// ErrorKindQuotaExceeded means the provider budget is exhausted.
	ErrorKindQuotaExceeded ErrorKind = "quota_exceeded"
	// ErrorKindRateLimited means the fixed-window limit was hit.
	ErrorKindRateLimited ErrorKind = "rate_limited"
	// ErrorKindCircuitOpen means the breaker rejected the call.
	ErrorKindCircuitOpen ErrorKind = "circuit_open"
	// ErrorKindTimeout means the remote call exceeded its bound.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindProtocol means the remote response was malformed.
	ErrorKindProtocol ErrorKind = "protocol"
)

// ProviderResult is one provider's outcome for a single lookup.
// Provider-specific response shapes never leak past this type.
type ProviderResult struct {
	// Provider is the stable provider identifier.
	Provider string `json:"provider"`

	// Severity is the normalized trust signal.
	Severity Severity `json:"severity"`

	// RawVerdict is the provider's own verdict label, kept for logging.
	RawVerdict string `json:"raw_verdict,omitempty"`

	// LatencyMs is the call latency in milliseconds.
	LatencyMs float64 `json:"latency_ms"`

	// Err tags the failure mode when Severity is unknown due to error.
	Err ErrorKind `json:"error,omitempty"`
}

// Failed reports whether the result carries an error tag.
func (r ProviderResult) Failed() bool {
	return r.Err != ErrorKindNone
}

// Contributed reports whether the result carries a usable signal.
func (r ProviderResult) Contributed() bool {
	return !r.Failed() && r.Severity != SeverityUnknown
}

// ErrorResult builds an error-tagged unknown-severity result.
func ErrorResult(provider string, kind ErrorKind, elapsed time.Duration) ProviderResult {
	return ProviderResult{
		Provider:  provider,
		Severity:  SeverityUnknown,
		Err:       kind,
		LatencyMs: float64(elapsed.Microseconds()) / 1000,
	}
}

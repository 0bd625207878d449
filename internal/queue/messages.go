// ABOUTME: Message types for NATS request/reply communication
// ABOUTME: Defines the scan request payload and verdict response envelope

package queue

import (
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// ScanRequest is the message sent to request a URL scan. Identifiers
// arrive raw on the wire and are hashed before anything is persisted
// or logged.
type ScanRequest struct {
	// The URL to scan.
	URL string `json:"url"`

	// Chat and message identifiers from the source platform.
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`

	// Pre-hashed sender identifier, when the producer knows it.
	SenderIDHash string `json:"sender_id_hash,omitempty"`

	// When the message was seen by the producer.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Optional request ID for correlation.
	RequestID string `json:"request_id,omitempty"`
}

// ProviderOutcome is one provider's result in a scan response.
type ProviderOutcome struct {
	Provider  string  `json:"provider"`
	Severity  string  `json:"severity"`
	ErrorKind string  `json:"error_kind,omitempty"`
	LatencyMs float64 `json:"latency_ms"`
}

// ScanResponse is the response message for a scan request.
type ScanResponse struct {
	// Request ID for correlation.
	RequestID string `json:"request_id,omitempty"`

	// Verdict: "SAFE", "WARN", or "DENY". Empty when Status is "error".
	Verdict string `json:"verdict,omitempty"`

	// Score in [0, 1]; higher is worse.
	Score float64 `json:"score"`

	// Providers whose signal produced the verdict.
	Contributors []string `json:"contributors,omitempty"`

	// Per-provider outcomes when providers ran.
	Providers []ProviderOutcome `json:"providers,omitempty"`

	// Status: "completed", "duplicate", or "error".
	Status string `json:"status"`

	// FromCache is true when the verdict came from the verdict cache.
	FromCache bool `json:"from_cache,omitempty"`

	// Notify tells the producer whether to surface the verdict.
	Notify bool `json:"notify"`

	// Error message if status is "error".
	Error string `json:"error,omitempty"`

	// Timestamp of the scan.
	ScannedAt time.Time `json:"scanned_at"`
}

// outcomes converts provider results into response outcomes.
func outcomes(results []types.ProviderResult) []ProviderOutcome {
	if len(results) == 0 {
		return nil
	}
	out := make([]ProviderOutcome, 0, len(results))
	for _, r := range results {
		out = append(out, ProviderOutcome{
			Provider:  r.Provider,
			Severity:  r.Severity.String(),
			ErrorKind: string(r.Err),
			LatencyMs: r.LatencyMs,
		})
	}
	return out
}

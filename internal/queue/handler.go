// ABOUTME: NATS message handler for scan requests
// ABOUTME: Bridges queue payloads to the orchestrator and shapes replies

package queue

import (
	"context"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/orchestrator"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// Handler processes scan requests through the orchestrator.
type Handler struct {
	orch *orchestrator.Orchestrator
	now  func() time.Time
}

// NewHandler creates a new message handler.
func NewHandler(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch, now: time.Now}
}

// ProcessRequest processes a single scan request and returns the response.
func (h *Handler) ProcessRequest(ctx context.Context, req ScanRequest) ScanResponse {
	resp := ScanResponse{
		RequestID: req.RequestID,
		ScannedAt: h.now().UTC(),
	}

	outcome, err := h.orch.SubmitScan(ctx, types.ScanRequest{
		URL:          req.URL,
		ChatID:       req.ChatID,
		MessageID:    req.MessageID,
		SenderIDHash: req.SenderIDHash,
		RequestedAt:  req.Timestamp,
	})
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return resp
	}

	resp.Verdict = outcome.Verdict.Severity.String()
	resp.Score = outcome.Verdict.Score
	resp.Contributors = outcome.Verdict.ContributingProviders
	resp.Providers = outcomes(outcome.Results)
	resp.FromCache = outcome.FromCache
	resp.Notify = outcome.Notify

	if outcome.Duplicate {
		resp.Status = "duplicate"
	} else {
		resp.Status = "completed"
	}

	return resp
}

// ProcessBatch processes multiple scan requests sequentially. Returns
// partial results when the context is cancelled.
func (h *Handler) ProcessBatch(ctx context.Context, reqs []ScanRequest) []ScanResponse {
	responses := make([]ScanResponse, 0, len(reqs))

	for _, req := range reqs {
		select {
		case <-ctx.Done():
			return responses
		default:
		}

		responses = append(responses, h.ProcessRequest(ctx, req))
	}

	return responses
}

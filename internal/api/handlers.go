// ABOUTME: HTTP handlers for the admin and scan API endpoints
// ABOUTME: Raw chat identifiers are hashed at this boundary before touching any store

package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hikmaai-io/hikmaai-sentinel/internal/blocklist"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/feeds"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/observability"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/orchestrator"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/resilience"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/store"
	"github.com/hikmaai-io/hikmaai-sentinel/internal/types"
)

// FeedStatusProvider reports the state of the blocklist feed updater.
type FeedStatusProvider interface {
	Status() feeds.UpdateStatus
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	orch         *orchestrator.Orchestrator
	records      *store.RecordStore
	cache        *store.VerdictCache
	engine       *blocklist.Engine
	breakers     []*resilience.CircuitBreaker
	feedStatus   FeedStatusProvider
	logger       *slog.Logger
	maxMuteHours int
}

// HandlerConfig holds configuration for API handlers.
type HandlerConfig struct {
	Orchestrator *orchestrator.Orchestrator
	Records      *store.RecordStore
	VerdictCache *store.VerdictCache
	Engine       *blocklist.Engine
	Breakers     []*resilience.CircuitBreaker
	FeedStatus   FeedStatusProvider
	Logger       *slog.Logger

	// MaxMuteHours caps mute requests. Defaults to 168 (one week).
	MaxMuteHours int
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxMuteHours <= 0 {
		cfg.MaxMuteHours = 168
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		orch:         cfg.Orchestrator,
		records:      cfg.Records,
		cache:        cfg.VerdictCache,
		engine:       cfg.Engine,
		breakers:     cfg.Breakers,
		feedStatus:   cfg.FeedStatus,
		logger:       cfg.Logger,
		maxMuteHours: cfg.MaxMuteHours,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/scans", h.HandleSubmitScan)
	mux.HandleFunc("GET /api/v1/scans", h.HandleListScans)
	mux.HandleFunc("GET /api/v1/verdicts/{urlHash}", h.HandleGetVerdict)
	mux.HandleFunc("POST /api/v1/groups/{chatID}/mute", h.HandleMuteChat)
	mux.HandleFunc("DELETE /api/v1/groups/{chatID}/mute", h.HandleUnmuteChat)
	mux.HandleFunc("GET /api/v1/health", h.HandleHealth)
}

// scanRequestBody is the JSON body for scan submission.
type scanRequestBody struct {
	URL          string `json:"url"`
	ChatID       string `json:"chat_id"`
	MessageID    string `json:"message_id"`
	SenderIDHash string `json:"sender_id_hash,omitempty"`
}

// scanResponseBody is the JSON response for a completed scan.
type scanResponseBody struct {
	Verdict      string   `json:"verdict"`
	Score        float64  `json:"score"`
	Contributors []string `json:"contributors,omitempty"`
	Duplicate    bool     `json:"duplicate"`
	FromCache    bool     `json:"from_cache"`
	Notify       bool     `json:"notify"`
}

// HandleSubmitScan handles synchronous scan submission.
// POST /api/v1/scans
func (h *Handler) HandleSubmitScan(w http.ResponseWriter, r *http.Request) {
	var body scanRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	outcome, err := h.orch.SubmitScan(r.Context(), types.ScanRequest{
		URL:          body.URL,
		ChatID:       body.ChatID,
		MessageID:    body.MessageID,
		SenderIDHash: body.SenderIDHash,
		RequestedAt:  time.Now(),
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("scan failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, scanResponseBody{
		Verdict:      outcome.Verdict.Severity.String(),
		Score:        outcome.Verdict.Score,
		Contributors: outcome.Verdict.ContributingProviders,
		Duplicate:    outcome.Duplicate,
		FromCache:    outcome.FromCache,
		Notify:       outcome.Notify,
	})
}

// HandleListScans returns recent scan records. All identifier fields in
// the response are digests.
// GET /api/v1/scans?limit=N
func (h *Handler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil || limit <= 0 || limit > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
	}

	records, err := h.records.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("listing scans: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// HandleGetVerdict returns the cached verdict for a URL hash.
// GET /api/v1/verdicts/{urlHash}
func (h *Handler) HandleGetVerdict(w http.ResponseWriter, r *http.Request) {
	urlHash := r.PathValue("urlHash")
	if !types.IsDigest(urlHash) {
		writeError(w, http.StatusBadRequest, "url hash must be a 64-character hex digest")
		return
	}

	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "verdict cache is not enabled")
		return
	}

	verdict, found, err := h.cache.Get(r.Context(), urlHash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reading verdict: %v", err))
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no cached verdict for this url hash")
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// muteRequestBody is the JSON body for mute requests.
type muteRequestBody struct {
	// Duration like "2h" or "30m". Defaults to 24h.
	Duration string `json:"duration,omitempty"`
}

// HandleMuteChat suppresses notifications for a chat. The raw chat
// identifier from the path is hashed before it reaches storage.
// POST /api/v1/groups/{chatID}/mute
func (h *Handler) HandleMuteChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "chat ID is required")
		return
	}

	duration := 24 * time.Hour
	var body muteRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Duration != "" {
		parsed, err := time.ParseDuration(body.Duration)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid duration %q", body.Duration))
			return
		}
		duration = parsed
	}

	if max := time.Duration(h.maxMuteHours) * time.Hour; duration > max {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("duration exceeds maximum of %s", max))
		return
	}

	until := time.Now().Add(duration)
	if err := h.orch.MuteChat(r.Context(), chatID, until); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("muting chat: %v", err))
		return
	}

	h.logger.Info("chat muted",
		observability.IdentifierAttr("chat_id", types.NamespaceChat, chatID),
		slog.Time("until", until))

	writeJSON(w, http.StatusOK, map[string]any{
		"muted": true,
		"until": until.UTC(),
	})
}

// HandleUnmuteChat clears a chat's mute window.
// DELETE /api/v1/groups/{chatID}/mute
func (h *Handler) HandleUnmuteChat(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "chat ID is required")
		return
	}

	if err := h.orch.UnmuteChat(r.Context(), chatID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("unmuting chat: %v", err))
		return
	}

	h.logger.Info("chat unmuted",
		observability.IdentifierAttr("chat_id", types.NamespaceChat, chatID))

	writeJSON(w, http.StatusOK, map[string]any{"muted": false})
}

// HandleHealth handles health check requests.
// GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]any)

	if h.engine != nil {
		stats, err := h.engine.Stats(r.Context())
		if err != nil {
			status = "degraded"
			checks["blocklist"] = fmt.Sprintf("error: %v", err)
		} else {
			checks["blocklist"] = fmt.Sprintf("ok (indicators: %d)", stats.EntryCount)
		}
	}

	if len(h.breakers) > 0 {
		breakerStates := make(map[string]string, len(h.breakers))
		for _, cb := range h.breakers {
			state := cb.State()
			breakerStates[cb.Name()] = state.String()
			if state != resilience.StateClosed {
				status = "degraded"
			}
		}
		checks["breakers"] = breakerStates
	}

	if h.feedStatus != nil {
		fs := h.feedStatus.Status()
		feedCheck := map[string]any{
			"last_run":     fs.LastRun,
			"last_success": fs.LastSuccess,
			"imported":     fs.Imported,
		}
		if len(fs.FeedErrors) > 0 {
			feedCheck["errors"] = fs.FeedErrors
			status = "degraded"
		}
		checks["feeds"] = feedCheck
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// LoggingMiddleware logs each request with its duration.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			// Health checks would drown out everything else.
			if strings.HasSuffix(r.URL.Path, "/health") {
				return
			}
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tokentra/internal/auth"
	"tokentra/internal/ingest"
	"tokentra/internal/metrics"
	"tokentra/internal/models"
	"tokentra/internal/ratelimit"
	"tokentra/internal/telemetry"
	"tokentra/internal/utils"
)

// ingestRequest is the body the SDK posts.
type ingestRequest struct {
	Events []json.RawMessage `json:"events"`
}

// ingestResponse reports the batch outcome. Errors is omitted when
// every event was accepted.
type ingestResponse struct {
	Success   bool                     `json:"success"`
	Processed int                      `json:"processed"`
	Failed    int                      `json:"failed"`
	Errors    []telemetry.InvalidEvent `json:"errors,omitempty"`
}

// IngestHandler serves the SDK telemetry endpoint.
type IngestHandler struct {
	validator *auth.Validator
	limiter   *ratelimit.Limiter
	pipeline  *ingest.Pipeline
	version   string
	logger    *utils.Logger
	now       func() time.Time
}

// NewIngestHandler creates the ingest handler.
func NewIngestHandler(validator *auth.Validator, limiter *ratelimit.Limiter, pipeline *ingest.Pipeline, version string, logger *utils.Logger) *IngestHandler {
	return &IngestHandler{
		validator: validator,
		limiter:   limiter,
		pipeline:  pipeline,
		version:   version,
		logger:    logger,
		now:       time.Now,
	}
}

// ServeHTTP dispatches POST to ingestion and GET to the health check.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleIngest(w, r)
	case http.MethodGet:
		h.handleHealth(w)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	}
}

func (h *IngestHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	key, apiErr := h.authenticate(r)
	if apiErr != nil {
		metrics.IngestRequestsTotal.WithLabelValues(apiErr.Code).Inc()
		utils.RespondWithAPIError(w, apiErr)
		return
	}

	perMinute, perDay := h.validator.Limits(key)
	limit := h.limiter.Check(r.Context(), key.ID, ratelimit.Limits{PerMinute: perMinute, PerDay: perDay}, start)
	if !limit.Allowed {
		metrics.IngestRequestsTotal.WithLabelValues("RATE_LIMIT_EXCEEDED").Inc()
		metrics.RateLimitDeniedTotal.WithLabelValues(limit.Scope).Inc()
		writeRateLimitHeaders(w, limit)
		w.Header().Set("Retry-After", "60")
		utils.RespondWithAPIError(w, utils.NewAPIError("RATE_LIMIT_EXCEEDED", "Rate limit exceeded", http.StatusTooManyRequests).
			WithDetails(map[string]string{"resetAt": limit.ResetMinute.Format(time.RFC3339)}))
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Events == nil {
		metrics.IngestRequestsTotal.WithLabelValues("INVALID_REQUEST").Inc()
		utils.RespondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "events array required")
		return
	}

	result, apiErr := h.pipeline.Process(r.Context(), key.OrganizationID, key.ID, req.Events)
	if apiErr != nil {
		metrics.IngestRequestsTotal.WithLabelValues(apiErr.Code).Inc()
		utils.RespondWithAPIError(w, apiErr)
		return
	}

	metrics.IngestRequestsTotal.WithLabelValues("ok").Inc()
	metrics.EventsProcessedTotal.WithLabelValues("processed").Add(float64(result.Processed))
	metrics.EventsProcessedTotal.WithLabelValues("failed").Add(float64(result.Failed))
	metrics.IngestRequestDuration.Observe(h.now().Sub(start).Seconds())

	writeRateLimitHeaders(w, limit)
	w.Header().Set("X-Processing-Time-Ms", strconv.FormatInt(h.now().Sub(start).Milliseconds(), 10))
	utils.RespondWithJSON(w, http.StatusOK, ingestResponse{
		Success:   true,
		Processed: result.Processed,
		Failed:    result.Failed,
		Errors:    result.Errors,
	})
}

func (h *IngestHandler) handleHealth(w http.ResponseWriter) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   h.version,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// authenticate extracts the bearer key and validates it for telemetry
// writes.
func (h *IngestHandler) authenticate(r *http.Request) (*models.APIKey, *utils.APIError) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, utils.NewAPIError("MISSING_AUTH", "Authorization header required", http.StatusUnauthorized)
	}
	return h.validator.ValidateKey(r.Context(), strings.TrimPrefix(authHeader, "Bearer "), "usage:write")
}

func writeRateLimitHeaders(w http.ResponseWriter, limit ratelimit.Result) {
	w.Header().Set("X-RateLimit-Remaining-Minute", strconv.Itoa(limit.RemainingMinute))
	w.Header().Set("X-RateLimit-Remaining-Day", strconv.Itoa(limit.RemainingDay))
	w.Header().Set("X-RateLimit-Reset-Minute", limit.ResetMinute.Format(time.RFC3339))
	w.Header().Set("X-RateLimit-Reset-Day", limit.ResetDay.Format(time.RFC3339))
}

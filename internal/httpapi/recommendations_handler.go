package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"tokentra/internal/middleware"
	"tokentra/internal/models"
	"tokentra/internal/optimize"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

// RecommendationLister lists an organization's recommendations for the
// dashboard.
type RecommendationLister interface {
	ListByOrganization(ctx context.Context, orgID, status string) ([]models.Recommendation, error)
}

type recommendationResponse struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Impact        models.JSONB `json:"impact"`
	Details       models.JSONB `json:"details"`
	Status        string       `json:"status"`
	AppliedAt     *time.Time   `json:"appliedAt,omitempty"`
	DismissedAt   *time.Time   `json:"dismissedAt,omitempty"`
	RoutingRuleID *string      `json:"routingRuleId,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type recommendationActionRequest struct {
	Action string `json:"action"`
}

// RecommendationsHandler serves the dashboard's optimization endpoints.
// All routes require a session token.
type RecommendationsHandler struct {
	lister  RecommendationLister
	service *optimize.Service
	logger  *utils.Logger
}

// NewRecommendationsHandler creates the recommendations handler.
func NewRecommendationsHandler(lister RecommendationLister, service *optimize.Service, logger *utils.Logger) *RecommendationsHandler {
	return &RecommendationsHandler{lister: lister, service: service, logger: logger}
}

func (h *RecommendationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetSessionClaims(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "MISSING_AUTH", "Authorization header required")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/optimization"), "/")
	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w, r, claims.OrganizationID)
	case id != "" && r.Method == http.MethodGet:
		h.get(w, r, claims.OrganizationID, id)
	case id != "" && r.Method == http.MethodPost:
		h.act(w, r, claims.OrganizationID, id, claims.UserID)
	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	}
}

func (h *RecommendationsHandler) list(w http.ResponseWriter, r *http.Request, orgID string) {
	status := r.URL.Query().Get("status")
	recs, err := h.lister.ListByOrganization(r.Context(), orgID, status)
	if err != nil {
		h.logger.Error("failed to list recommendations", "org_id", orgID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	out := make([]recommendationResponse, 0, len(recs))
	for i := range recs {
		out = append(out, toRecommendationResponse(&recs[i]))
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"recommendations": out})
}

func (h *RecommendationsHandler) get(w http.ResponseWriter, r *http.Request, orgID, id string) {
	rec, err := h.service.Get(r.Context(), orgID, id)
	if errors.Is(err, storage.ErrRecommendationNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "NOT_FOUND", "Recommendation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get recommendation", "org_id", orgID, "id", id, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, toRecommendationResponse(rec))
}

func (h *RecommendationsHandler) act(w http.ResponseWriter, r *http.Request, orgID, id, userID string) {
	var req recommendationActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	var (
		rec *models.Recommendation
		err error
	)
	switch req.Action {
	case "apply":
		rec, err = h.service.Apply(r.Context(), orgID, id, userID)
	case "dismiss":
		rec, err = h.service.Dismiss(r.Context(), orgID, id, userID)
	default:
		utils.RespondWithError(w, http.StatusBadRequest, "INVALID_ACTION", "action must be apply or dismiss")
		return
	}

	switch {
	case errors.Is(err, storage.ErrRecommendationNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "NOT_FOUND", "Recommendation not found")
	case errors.Is(err, optimize.ErrNotPending):
		utils.RespondWithError(w, http.StatusConflict, "NOT_PENDING", "Recommendation has already been applied or dismissed")
	case err != nil:
		h.logger.Error("recommendation action failed", "org_id", orgID, "id", id, "action", req.Action, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	default:
		utils.RespondWithJSON(w, http.StatusOK, toRecommendationResponse(rec))
	}
}

func toRecommendationResponse(rec *models.Recommendation) recommendationResponse {
	return recommendationResponse{
		ID:            rec.ID,
		Type:          rec.Type,
		Title:         rec.Title,
		Description:   rec.Description,
		Impact:        rec.Impact,
		Details:       rec.Details,
		Status:        rec.Status,
		AppliedAt:     rec.AppliedAt,
		DismissedAt:   rec.DismissedAt,
		RoutingRuleID: rec.RoutingRuleID,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"tokentra/internal/auth"
	"tokentra/internal/models"
	"tokentra/internal/utils"
)

// RuleSource lists the enabled routing rules the SDK enforces.
type RuleSource interface {
	ListEnabled(ctx context.Context, orgID string) ([]models.RoutingRule, error)
}

// sdkRule is a routing rule formatted for SDK-side enforcement.
type sdkRule struct {
	ID             string                    `json:"id"`
	Name           string                    `json:"name"`
	RuleType       string                    `json:"ruleType"`
	Priority       int                       `json:"priority"`
	Conditions     []models.RoutingCondition `json:"conditions"`
	TargetModel    string                    `json:"targetModel,omitempty"`
	TargetProvider string                    `json:"targetProvider,omitempty"`
}

// modelMapping is a flattened model_route rule the SDK applies without
// evaluating conditions.
type modelMapping struct {
	SourceModel string `json:"sourceModel"`
	TargetModel string `json:"targetModel"`
}

type sdkConfigResponse struct {
	Enabled       bool           `json:"enabled"`
	EnableRouting bool           `json:"enableRouting"`
	EnableCaching bool           `json:"enableCaching"`
	RoutingRules  []sdkRule      `json:"routingRules"`
	ModelMappings []modelMapping `json:"modelMappings"`
}

// SDKConfigHandler serves the routing configuration the SDK polls.
type SDKConfigHandler struct {
	validator *auth.Validator
	rules     RuleSource
	logger    *utils.Logger
}

// NewSDKConfigHandler creates the SDK config handler.
func NewSDKConfigHandler(validator *auth.Validator, rules RuleSource, logger *utils.Logger) *SDKConfigHandler {
	return &SDKConfigHandler{validator: validator, rules: rules, logger: logger}
}

// ServeHTTP handles GET /v1/sdk/config.
func (h *SDKConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
		return
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		utils.RespondWithError(w, http.StatusUnauthorized, "MISSING_AUTH", "Authorization header required")
		return
	}

	key, apiErr := h.validator.ValidateKey(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
	if apiErr != nil {
		utils.RespondWithAPIError(w, apiErr)
		return
	}

	rules, err := h.rules.ListEnabled(r.Context(), key.OrganizationID)
	if err != nil {
		h.logger.Error("failed to load routing rules", "org_id", key.OrganizationID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
		return
	}

	resp := sdkConfigResponse{
		Enabled:       true,
		EnableCaching: true,
		RoutingRules:  make([]sdkRule, 0, len(rules)),
		ModelMappings: make([]modelMapping, 0),
	}

	for _, rule := range rules {
		formatted := sdkRule{
			ID:             rule.ID,
			Name:           rule.Name,
			RuleType:       rule.RuleType,
			Priority:       rule.Priority,
			Conditions:     rule.Conditions,
			TargetModel:    stringField(rule.Actions, "targetModel"),
			TargetProvider: stringField(rule.Actions, "targetProvider"),
		}
		resp.RoutingRules = append(resp.RoutingRules, formatted)

		if rule.RuleType == models.RuleTypeModelRoute && formatted.TargetModel != "" {
			if source := conditionValue(rule.Conditions, "model"); source != "" {
				resp.ModelMappings = append(resp.ModelMappings, modelMapping{
					SourceModel: source,
					TargetModel: formatted.TargetModel,
				})
			}
		}
	}
	resp.EnableRouting = len(resp.RoutingRules) > 0

	// The SDK refreshes its config on an interval; let intermediaries
	// cache it briefly.
	w.Header().Set("Cache-Control", "private, max-age=300")
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func stringField(m models.JSONB, field string) string {
	s, _ := m[field].(string)
	return s
}

func conditionValue(conditions models.ConditionList, field string) string {
	for _, c := range conditions {
		if c.Field == field && c.Operator == "eq" {
			if s, ok := c.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

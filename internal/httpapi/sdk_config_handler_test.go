package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentra/internal/auth"
	"tokentra/internal/models"
	"tokentra/internal/utils"
)

type staticRuleSource struct {
	rules []models.RoutingRule
}

func (s *staticRuleSource) ListEnabled(context.Context, string) ([]models.RoutingRule, error) {
	return s.rules, nil
}

func newConfigHandler(rules ...models.RoutingRule) *SDKConfigHandler {
	logger := utils.NewLogger("test", utils.Critical)
	keys := &fakeKeyStore{keys: map[string]*models.APIKey{
		utils.HashString(testRawKey): testKey(0),
	}}
	validator := auth.NewValidator(keys, 1000, 100000, logger)
	return NewSDKConfigHandler(validator, &staticRuleSource{rules: rules}, logger)
}

func routeRule(id, source, target string) models.RoutingRule {
	return models.RoutingRule{
		ID:       id,
		Name:     "Switch " + source,
		RuleType: models.RuleTypeModelRoute,
		Priority: 100,
		Conditions: models.ConditionList{
			{Field: "model", Operator: "eq", Value: source},
		},
		Actions: models.JSONB{"type": "route_to_model", "targetModel": target},
		Enabled: true,
	}
}

func TestSDKConfigReturnsRulesAndMappings(t *testing.T) {
	handler := newConfigHandler(
		routeRule("rule-1", "gpt-4o", "gpt-4o-mini"),
		models.RoutingRule{
			ID:       "rule-2",
			Name:     "Cache repeats",
			RuleType: models.RuleTypeCache,
			Priority: 100,
			Actions:  models.JSONB{"type": "enable_cache"},
			Enabled:  true,
		},
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/sdk/config", nil)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "private, max-age=300", rec.Header().Get("Cache-Control"))

	var resp sdkConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Enabled)
	assert.True(t, resp.EnableRouting)
	require.Len(t, resp.RoutingRules, 2)
	assert.Equal(t, "gpt-4o-mini", resp.RoutingRules[0].TargetModel)
	require.Len(t, resp.ModelMappings, 1)
	assert.Equal(t, "gpt-4o", resp.ModelMappings[0].SourceModel)
	assert.Equal(t, "gpt-4o-mini", resp.ModelMappings[0].TargetModel)
}

func TestSDKConfigWithoutRules(t *testing.T) {
	handler := newConfigHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/sdk/config", nil)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp sdkConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.EnableRouting)
	assert.Empty(t, resp.RoutingRules)
	assert.Empty(t, resp.ModelMappings)
}

func TestSDKConfigRequiresAuth(t *testing.T) {
	handler := newConfigHandler()

	req := httptest.NewRequest(http.MethodGet, "/v1/sdk/config", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_AUTH")
}

func TestSDKConfigRejectsPost(t *testing.T) {
	handler := newConfigHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/sdk/config", nil)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

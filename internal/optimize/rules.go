package optimize

import (
	"tokentra/internal/models"
)

// defaultRulePriority leaves room above and below for hand-written
// rules.
const defaultRulePriority = 100

// ruleTypeFor maps recommendation types to the routing rule type the
// SDK enforces for them. Types with no entry apply without creating a
// rule; their remediation happens outside request routing.
var ruleTypeFor = map[string]string{
	PatternModelDowngrade: models.RuleTypeModelRoute,
	PatternProviderSwitch: models.RuleTypeModelRoute,

	PatternCaching: models.RuleTypeCache,

	PatternBatching: models.RuleTypeBatch,

	PatternErrorReduction: models.RuleTypeRateLimit,

	// Categories produced by deeper analysis jobs share the same
	// enforcement surface as the basic detectors.
	"task_aware_routing":         models.RuleTypeModelRoute,
	"quality_cost_pareto":        models.RuleTypeModelRoute,
	"provider_arbitrage":         models.RuleTypeModelRoute,
	"model_version_optimization": models.RuleTypeModelRoute,
	"embedding_optimization":     models.RuleTypeModelRoute,

	"semantic_caching":         models.RuleTypeCache,
	"partial_response_caching": models.RuleTypeCache,
	"request_deduplication":    models.RuleTypeCache,

	"io_ratio_optimization":      models.RuleTypeCompress,
	"context_window_efficiency":  models.RuleTypeCompress,
	"prompt_compression":         models.RuleTypeCompress,
	"output_format_optimization": models.RuleTypeCompress,

	"retry_storm_detection":       models.RuleTypeRateLimit,
	"timeout_cost_analysis":       models.RuleTypeRateLimit,
	"rate_limit_optimization":     models.RuleTypeRateLimit,
	"abandoned_request_detection": models.RuleTypeRateLimit,

	"time_based_optimization": models.RuleTypeBatch,
}

// RuleFromRecommendation builds the routing rule an applied
// recommendation deposits for the SDK to pick up. Returns nil when the
// recommendation type has no enforcement rule.
func RuleFromRecommendation(rec *models.Recommendation) *models.RoutingRule {
	ruleType, ok := ruleTypeFor[rec.Type]
	if !ok {
		return nil
	}

	rule := &models.RoutingRule{
		OrganizationID: rec.OrganizationID,
		Name:           rec.Title,
		Description:    rec.Description,
		RuleType:       ruleType,
		Priority:       defaultRulePriority,
		Enabled:        true,
		CreatedFrom:    &rec.ID,
	}
	rule.Conditions, rule.Actions = ruleBody(rec, ruleType)
	return rule
}

func ruleBody(rec *models.Recommendation, ruleType string) (models.ConditionList, models.JSONB) {
	switch rec.Type {
	case PatternModelDowngrade:
		return models.ConditionList{
				{Field: "model", Operator: "eq", Value: rec.Details["currentModel"]},
			}, models.JSONB{
				"type":        "route_to_model",
				"targetModel": rec.Details["recommendedModel"],
			}

	case PatternProviderSwitch:
		return models.ConditionList{
				{Field: "provider", Operator: "eq", Value: rec.Details["currentProvider"]},
			}, models.JSONB{
				"type":               "route_to_model",
				"suggestedProviders": rec.Details["suggestedProviders"],
			}
	}

	switch ruleType {
	case models.RuleTypeCache:
		return nil, models.JSONB{"type": "enable_cache", "strategy": "semantic"}
	case models.RuleTypeCompress:
		return nil, models.JSONB{"type": "compress_prompt"}
	case models.RuleTypeRateLimit:
		return nil, models.JSONB{"type": "throttle"}
	case models.RuleTypeBatch:
		return nil, models.JSONB{"type": "defer_to_batch"}
	}
	return nil, models.JSONB{"type": "route_to_model"}
}

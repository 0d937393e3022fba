package optimize

import (
	"fmt"
	"math"
	"sort"

	"tokentra/internal/models"
)

// maxRecommendations caps the list surfaced to users per analysis run.
const maxRecommendations = 10

// Recommendation is the user-facing form of a detected pattern, ready
// to persist.
type Recommendation struct {
	Type        string
	Title       string
	Description string
	Impact      models.JSONB
	Details     models.JSONB

	savings float64
}

// BuildRecommendations turns patterns into ranked recommendations,
// highest estimated savings first, capped at the top ten.
func BuildRecommendations(patterns []Pattern) []Recommendation {
	var recs []Recommendation
	for _, p := range patterns {
		if rec, ok := patternToRecommendation(p); ok {
			recs = append(recs, rec)
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].savings > recs[j].savings
	})

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func patternToRecommendation(p Pattern) (Recommendation, bool) {
	switch p.Type {
	case PatternModelDowngrade:
		current := p.Data["currentModel"]
		suggested := p.Data["suggestedModel"]
		currentCost := asFloat(p.Data["currentCost"])
		if currentCost == 0 {
			currentCost = 1
		}
		return Recommendation{
			Type:  p.Type,
			Title: fmt.Sprintf("Switch from %v to %v for simple queries", current, suggested),
			Description: fmt.Sprintf(
				"Analysis shows %v of your %v requests are simple queries that could be handled by %v at significantly lower cost.",
				p.Data["requestCount"], current, suggested),
			Impact: impact(p, roundPercent(p.PotentialSavings/currentCost*100), asInt(p.Data["requestCount"])),
			Details: models.JSONB{
				"currentModel":        current,
				"recommendedModel":    suggested,
				"avgTokensPerRequest": p.Data["avgTokens"],
				"qualityImpact":       "minimal",
			},
			savings: p.PotentialSavings,
		}, true

	case PatternCaching:
		rate := asFloat(p.Data["duplicateRate"])
		return Recommendation{
			Type:  p.Type,
			Title: "Enable semantic caching for repeated queries",
			Description: fmt.Sprintf(
				"We detected %.0f%% of your queries are semantically similar. Enabling caching could reduce costs significantly.",
				rate*100),
			Impact: impact(p, roundPercent(rate*100), asInt(p.Data["duplicateCount"])),
			Details: models.JSONB{
				"duplicateRate":    rate,
				"cachableRequests": p.Data["duplicateCount"],
			},
			savings: p.PotentialSavings,
		}, true

	case PatternBatching:
		return Recommendation{
			Type:  p.Type,
			Title: "Batch similar requests for efficiency",
			Description: fmt.Sprintf(
				"%v requests could be batched together to reduce overhead and improve throughput.",
				p.Data["batchableCount"]),
			Impact: impact(p, 15, asInt(p.Data["batchableCount"])),
			Details: models.JSONB{
				"batchablePercentage": p.Data["batchablePercentage"],
			},
			savings: p.PotentialSavings,
		}, true

	case PatternErrorReduction:
		rate := asFloat(p.Data["errorRate"])
		return Recommendation{
			Type:  p.Type,
			Title: "Reduce failed requests to save costs",
			Description: fmt.Sprintf(
				"%.1f%% of your requests are failing. Fixing these issues could save $%.2f/month.",
				rate*100, p.PotentialSavings),
			Impact: impact(p, roundPercent(rate*100), asInt(p.Data["errorCount"])),
			Details: models.JSONB{
				"errorRate":  rate,
				"errorTypes": p.Data["errorTypes"],
			},
			savings: p.PotentialSavings,
		}, true

	case PatternProviderSwitch:
		return Recommendation{
			Type:        p.Type,
			Title:       "Diversify providers for better pricing",
			Description: "Consider using multiple providers to optimize for cost and reliability.",
			Impact:      impact(p, 10, 0),
			Details: models.JSONB{
				"currentProvider":    p.Data["currentProvider"],
				"suggestedProviders": p.Data["suggestedProviders"],
			},
			savings: p.PotentialSavings,
		}, true
	}

	return Recommendation{}, false
}

func impact(p Pattern, savingsPercentage, affectedRequests int) models.JSONB {
	return models.JSONB{
		"estimatedMonthlySavings": p.PotentialSavings,
		"savingsPercentage":       savingsPercentage,
		"confidence":              p.Confidence,
		"affectedRequests":        affectedRequests,
	}
}

func roundPercent(v float64) int {
	return int(math.Round(v))
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

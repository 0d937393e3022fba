package optimize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tokentra/internal/models"
)

// Confidence levels attached to detected patterns.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Pattern types produced by the detectors.
const (
	PatternModelDowngrade = "model_downgrade"
	PatternCaching        = "caching_opportunity"
	PatternBatching       = "batching_opportunity"
	PatternErrorReduction = "error_reduction"
	PatternProviderSwitch = "provider_switch"
)

// Pattern is one detected usage pattern with its supporting data and a
// monthly savings estimate.
type Pattern struct {
	Type             string
	Description      string
	Data             models.JSONB
	PotentialSavings float64
	Confidence       string
}

// downgradeTarget pairs an expensive model with its cheaper substitute.
type downgradeTarget struct {
	match          string
	target         string
	savingsPercent float64
}

// Ordered so that more specific model names match before their prefixes.
var downgradeTargets = []downgradeTarget{
	{"gpt-4o", "gpt-4o-mini", 90},
	{"gpt-4-turbo", "gpt-4o-mini", 90},
	{"gpt-4", "gpt-4o-mini", 95},
	{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022", 80},
	{"claude-3-opus-20240229", "claude-3-5-sonnet-20241022", 70},
}

// Analyze runs every detector over a window of usage records and
// returns the patterns found. Records are expected to cover at most the
// analysis window; savings are extrapolated to a 30 day month.
func Analyze(records []models.UsageRecord) []Pattern {
	if len(records) == 0 {
		return nil
	}

	var patterns []Pattern
	patterns = append(patterns, detectModelDowngrades(records)...)
	patterns = append(patterns, detectCachingOpportunities(records)...)
	patterns = append(patterns, detectBatchingOpportunities(records)...)
	patterns = append(patterns, detectErrorPatterns(records)...)
	patterns = append(patterns, detectProviderSwitches(records)...)
	return patterns
}

// detectModelDowngrades finds expensive models whose traffic is simple
// enough to move to a cheaper variant.
func detectModelDowngrades(records []models.UsageRecord) []Pattern {
	byModel := make(map[string][]models.UsageRecord)
	for _, r := range records {
		byModel[r.Model] = append(byModel[r.Model], r)
	}

	names := make([]string, 0, len(byModel))
	for model := range byModel {
		names = append(names, model)
	}
	sort.Strings(names)

	var patterns []Pattern
	for _, model := range names {
		group := byModel[model]
		lower := strings.ToLower(model)
		if strings.Contains(lower, "mini") || strings.Contains(lower, "haiku") || strings.Contains(lower, "flash") {
			continue
		}

		var downgrade *downgradeTarget
		for i := range downgradeTargets {
			if strings.Contains(lower, downgradeTargets[i].match) {
				downgrade = &downgradeTargets[i]
				break
			}
		}
		if downgrade == nil {
			continue
		}

		var totalCost float64
		var totalTokens int
		for _, r := range group {
			totalCost += r.TotalCost()
			totalTokens += r.TotalTokens()
		}
		avgTokens := float64(totalTokens) / float64(len(group))

		// Only simple traffic is a downgrade candidate.
		if avgTokens >= 1000 {
			continue
		}

		confidence := ConfidenceMedium
		if avgTokens < 500 {
			confidence = ConfidenceHigh
		}

		savings := totalCost * downgrade.savingsPercent / 100

		patterns = append(patterns, Pattern{
			Type:        PatternModelDowngrade,
			Description: fmt.Sprintf("%d requests to %s could use %s", len(group), model, downgrade.target),
			Data: models.JSONB{
				"currentModel":   model,
				"suggestedModel": downgrade.target,
				"requestCount":   len(group),
				"currentCost":    totalCost,
				"avgTokens":      avgTokens,
			},
			PotentialSavings: monthlyEstimate(savings, len(group)),
			Confidence:       confidence,
		})
	}

	return patterns
}

// detectCachingOpportunities estimates the duplicate rate from repeated
// model plus input-size signatures. A prompt hash would be more precise
// but the SDK does not always report one.
func detectCachingOpportunities(records []models.UsageRecord) []Pattern {
	counts := make(map[string]int)
	costs := make(map[string]float64)
	for _, r := range records {
		key := fmt.Sprintf("%s_%d", r.Model, r.InputTokens)
		counts[key]++
		costs[key] += r.TotalCost()
	}

	var duplicateCount int
	var duplicateCost float64
	for key, count := range counts {
		if count > 2 {
			// The first request in each group is not a duplicate.
			duplicateCount += count - 1
			duplicateCost += costs[key] * float64(count-1) / float64(count)
		}
	}

	duplicateRate := float64(duplicateCount) / float64(len(records))
	if duplicateRate <= 0.1 {
		return nil
	}

	confidence := ConfidenceMedium
	if duplicateRate > 0.3 {
		confidence = ConfidenceHigh
	}

	return []Pattern{{
		Type:        PatternCaching,
		Description: fmt.Sprintf("%.0f%% of requests appear to be similar", duplicateRate*100),
		Data: models.JSONB{
			"duplicateRate":  duplicateRate,
			"duplicateCount": duplicateCount,
			"totalRequests":  len(records),
		},
		PotentialSavings: monthlyEstimate(duplicateCost, len(records)),
		Confidence:       confidence,
	}}
}

// detectBatchingOpportunities looks for burst traffic that could be
// collapsed into batch requests.
func detectBatchingOpportunities(records []models.UsageRecord) []Pattern {
	byMinute := make(map[string][]models.UsageRecord)
	for _, r := range records {
		key := r.Timestamp.UTC().Format("2006-01-02T15:04")
		byMinute[key] = append(byMinute[key], r)
	}

	var batchableCount int
	var batchableCost float64
	for _, group := range byMinute {
		if len(group) > 5 {
			batchableCount += len(group)
			for _, r := range group {
				batchableCost += r.TotalCost()
			}
		}
	}

	if float64(batchableCount) <= float64(len(records))*0.2 {
		return nil
	}

	return []Pattern{{
		Type:        PatternBatching,
		Description: fmt.Sprintf("%d requests could be batched for efficiency", batchableCount),
		Data: models.JSONB{
			"batchableCount":      batchableCount,
			"totalRequests":       len(records),
			"batchablePercentage": float64(batchableCount) / float64(len(records)) * 100,
		},
		PotentialSavings: batchableCost * 0.15,
		Confidence:       ConfidenceMedium,
	}}
}

// detectErrorPatterns flags spend wasted on failed requests.
func detectErrorPatterns(records []models.UsageRecord) []Pattern {
	var errorCount int
	var errorCost float64
	codes := make(map[string]struct{})
	for _, r := range records {
		if !r.Failed() {
			continue
		}
		errorCount++
		errorCost += r.TotalCost()
		if r.ErrorCode != nil {
			codes[*r.ErrorCode] = struct{}{}
		}
	}

	errorRate := float64(errorCount) / float64(len(records))
	if errorRate <= 0.05 {
		return nil
	}

	errorTypes := make([]string, 0, len(codes))
	for code := range codes {
		errorTypes = append(errorTypes, code)
	}
	sort.Strings(errorTypes)

	return []Pattern{{
		Type:        PatternErrorReduction,
		Description: fmt.Sprintf("%.1f%% of requests are failing", errorRate*100),
		Data: models.JSONB{
			"errorCount": errorCount,
			"errorRate":  errorRate,
			"errorCost":  errorCost,
			"errorTypes": errorTypes,
		},
		PotentialSavings: monthlyEstimate(errorCost, len(records)),
		Confidence:       ConfidenceHigh,
	}}
}

// detectProviderSwitches flags heavy single-provider spend worth
// diversifying.
func detectProviderSwitches(records []models.UsageRecord) []Pattern {
	costs := make(map[string]float64)
	for _, r := range records {
		costs[r.Provider] += r.TotalCost()
	}

	openaiCost, ok := costs["openai"]
	if !ok || openaiCost <= 100 {
		return nil
	}

	return []Pattern{{
		Type:        PatternProviderSwitch,
		Description: "Consider diversifying across providers for better pricing",
		Data: models.JSONB{
			"currentProvider":    "openai",
			"currentCost":        openaiCost,
			"suggestedProviders": []string{"anthropic", "google"},
		},
		PotentialSavings: openaiCost * 0.1,
		Confidence:       ConfidenceLow,
	}}
}

// monthlyEstimate extrapolates savings observed over a sample to a 30
// day month.
func monthlyEstimate(savings float64, sampleSize int) float64 {
	return savings * 30 / math.Min(30, float64(sampleSize))
}

// Package pricing computes LLM usage cost from a static list-price
// table. Prices are denominated in USD per million tokens.
package pricing

import "strings"

// Cost is the computed cost breakdown for one request.
type Cost struct {
	Input  float64
	Output float64
	Cached float64
}

// Total returns the sum of all cost components.
func (c Cost) Total() float64 {
	return c.Input + c.Output + c.Cached
}

// Lookup resolves the rate for a provider/model pair. Matching is
// case-insensitive on the provider; the model tries an exact match,
// then a substring match either direction against the provider's
// entries, so dated variants like "gpt-4o-2024-08-06" resolve to their
// base model. When several keys match, the longest wins as the most
// specific. Unknown pairs fall back to the default rate.
func Lookup(provider, model string) Rate {
	models, ok := table[strings.ToLower(provider)]
	if !ok {
		return defaultRate
	}
	if rate, ok := models[model]; ok {
		return rate
	}

	lowerModel := strings.ToLower(model)
	bestKey := ""
	for key := range models {
		lowerKey := strings.ToLower(key)
		if !strings.Contains(lowerModel, lowerKey) && !strings.Contains(lowerKey, lowerModel) {
			continue
		}
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return models[bestKey]
	}
	return defaultRate
}

// Calculate prices a request's token counts.
func Calculate(provider, model string, inputTokens, outputTokens, cachedTokens int) Cost {
	rate := Lookup(provider, model)
	return Cost{
		Input:  float64(inputTokens) / 1_000_000 * rate.Input,
		Output: float64(outputTokens) / 1_000_000 * rate.Output,
		Cached: float64(cachedTokens) / 1_000_000 * rate.Cached,
	}
}

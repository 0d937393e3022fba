package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateExactMatch(t *testing.T) {
	// gpt-4o-mini at 0.15/0.60 per 1M tokens.
	cost := Calculate("openai", "gpt-4o-mini", 100, 50, 0)

	assert.InDelta(t, 100.0/1_000_000*0.15, cost.Input, 1e-12)
	assert.InDelta(t, 50.0/1_000_000*0.6, cost.Output, 1e-12)
	assert.Zero(t, cost.Cached)
	assert.InDelta(t, cost.Input+cost.Output, cost.Total(), 1e-12)
}

func TestCalculateProviderCaseInsensitive(t *testing.T) {
	upper := Calculate("OpenAI", "gpt-4o", 1000, 1000, 0)
	lower := Calculate("openai", "gpt-4o", 1000, 1000, 0)

	assert.Equal(t, lower, upper)
}

func TestLookupSubstringFallback(t *testing.T) {
	// Dated snapshot names resolve to the base model entry.
	rate := Lookup("openai", "gpt-4o-2024-08-06")
	assert.Equal(t, table["openai"]["gpt-4o"], rate)

	// Substring matching works both directions.
	rate = Lookup("anthropic", "claude-3-5-sonnet")
	assert.Equal(t, table["anthropic"]["claude-3-5-sonnet-20241022"], rate)
}

func TestLookupPrefersMostSpecific(t *testing.T) {
	// "gpt-4o-mini-2024" contains both gpt-4o and gpt-4o-mini; the
	// longer key must win.
	rate := Lookup("openai", "gpt-4o-mini-2024-07-18")
	assert.Equal(t, table["openai"]["gpt-4o-mini"], rate)
}

func TestLookupDefaults(t *testing.T) {
	assert.Equal(t, defaultRate, Lookup("unknown-provider", "some-model"))
	assert.Equal(t, defaultRate, Lookup("openai", "totally-unrelated"))
}

func TestCalculateCachedTokens(t *testing.T) {
	cost := Calculate("anthropic", "claude-3-5-sonnet-20241022", 0, 0, 2_000_000)
	assert.InDelta(t, 0.6, cost.Cached, 1e-12)

	// Models with no cached rate price cached tokens at zero.
	cost = Calculate("openai", "gpt-4o", 0, 0, 2_000_000)
	assert.Zero(t, cost.Cached)
}

func TestCalculateZeroTokens(t *testing.T) {
	cost := Calculate("openai", "gpt-4o", 0, 0, 0)
	assert.Zero(t, cost.Total())
}

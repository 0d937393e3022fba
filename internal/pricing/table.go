package pricing

// Rate is the per-million-token price of one model in USD.
type Rate struct {
	Input  float64
	Output float64
	Cached float64
}

// defaultRate is used when a provider/model pair has no table entry.
var defaultRate = Rate{Input: 1, Output: 3, Cached: 0.10}

// table holds list prices in USD per 1M tokens, keyed by provider and
// model. A zero Cached rate means cached tokens are free for that
// model.
var table = map[string]map[string]Rate{
	"openai": {
		"gpt-4":         {Input: 30, Output: 60},
		"gpt-4-turbo":   {Input: 10, Output: 30},
		"gpt-4o":        {Input: 2.5, Output: 10},
		"gpt-4o-mini":   {Input: 0.15, Output: 0.6},
		"gpt-3.5-turbo": {Input: 0.5, Output: 1.5},
		"o1":            {Input: 15, Output: 60},
		"o1-mini":       {Input: 3, Output: 12},
		"o1-pro":        {Input: 150, Output: 600},
		"o3-mini":       {Input: 1.1, Output: 4.4},
	},
	"anthropic": {
		"claude-3-5-sonnet-20241022": {Input: 3, Output: 15, Cached: 0.3},
		"claude-3-5-haiku-20241022":  {Input: 0.8, Output: 4, Cached: 0.08},
		"claude-3-opus-20240229":     {Input: 15, Output: 75, Cached: 1.5},
		"claude-3-sonnet-20240229":   {Input: 3, Output: 15, Cached: 0.3},
		"claude-3-haiku-20240307":    {Input: 0.25, Output: 1.25, Cached: 0.03},
	},
	"google": {
		"gemini-2.0-flash": {Input: 0.1, Output: 0.4},
		"gemini-1.5-pro":   {Input: 1.25, Output: 5},
		"gemini-1.5-flash": {Input: 0.075, Output: 0.3},
	},
	"azure": {
		"gpt-4":  {Input: 30, Output: 60},
		"gpt-4o": {Input: 2.5, Output: 10},
	},
	"aws": {
		"anthropic.claude-3-sonnet": {Input: 3, Output: 15},
		"anthropic.claude-3-haiku":  {Input: 0.25, Output: 1.25},
	},
	"xai": {
		"grok-2":      {Input: 2, Output: 10},
		"grok-2-mini": {Input: 0.2, Output: 1},
	},
	"deepseek": {
		"deepseek-chat":     {Input: 0.14, Output: 0.28},
		"deepseek-reasoner": {Input: 0.55, Output: 2.19},
	},
	"mistral": {
		"mistral-large": {Input: 2, Output: 6},
		"mistral-small": {Input: 0.2, Output: 0.6},
	},
	"cohere": {
		"command-r-plus": {Input: 2.5, Output: 10},
		"command-r":      {Input: 0.15, Output: 0.6},
	},
	"groq": {
		"llama-3.3-70b": {Input: 0.59, Output: 0.79},
		"mixtral-8x7b":  {Input: 0.24, Output: 0.24},
	},
}

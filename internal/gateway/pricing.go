package gateway

import "strings"

// ModelPricing is the USD price per thousand tokens.
type ModelPricing struct {
	PromptPer1K     float64 `json:"prompt_per_1k"`
	CompletionPer1K float64 `json:"completion_per_1k"`
}

// DefaultPricing is used for models missing from the table.
var DefaultPricing = ModelPricing{PromptPer1K: 0.0005, CompletionPer1K: 0.0015}

// Pricing maps model names to their prices. Lookup also matches dated
// variants such as "gpt-4o-2024-08-06" by prefix.
type Pricing map[string]ModelPricing

// DefaultPricingTable covers the models the service picks by default.
func DefaultPricingTable() Pricing {
	return Pricing{
		"gpt-3.5-turbo":    {PromptPer1K: 0.0005, CompletionPer1K: 0.0015},
		"gpt-4o-mini":      {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
		"gpt-4o":           {PromptPer1K: 0.0025, CompletionPer1K: 0.01},
		"gpt-4-turbo":      {PromptPer1K: 0.01, CompletionPer1K: 0.03},
		"gpt-4":            {PromptPer1K: 0.03, CompletionPer1K: 0.06},
		"claude-3-haiku":   {PromptPer1K: 0.00025, CompletionPer1K: 0.00125},
		"claude-3-5-haiku": {PromptPer1K: 0.0008, CompletionPer1K: 0.004},
		"claude-sonnet-4":  {PromptPer1K: 0.003, CompletionPer1K: 0.015},
		ProviderExtractive: {},
	}
}

// Lookup returns the pricing for model.
func (p Pricing) Lookup(model string) ModelPricing {
	if mp, ok := p[model]; ok {
		return mp
	}
	best, bestLen := DefaultPricing, 0
	for name, mp := range p {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = mp, len(name)
		}
	}
	return best
}

// Cost returns the USD cost of a call.
func (p Pricing) Cost(model string, promptTokens, completionTokens int) float64 {
	mp := p.Lookup(model)
	return (float64(promptTokens)*mp.PromptPer1K + float64(completionTokens)*mp.CompletionPer1K) / 1000
}

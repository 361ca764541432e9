package agent

import "strings"

// modelPrice is USD per million tokens.
type modelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

var priceTable = map[string]modelPrice{
	"claude-sonnet-4-5": {InputPerMTok: 3, OutputPerMTok: 15},
	"claude-opus-4-1":   {InputPerMTok: 15, OutputPerMTok: 75},
	"claude-haiku-4-5":  {InputPerMTok: 1, OutputPerMTok: 5},
	"gpt-5-codex":       {InputPerMTok: 1.25, OutputPerMTok: 10},
	"gemini-2.5-pro":    {InputPerMTok: 1.25, OutputPerMTok: 10},
	"gemini-2.5-flash":  {InputPerMTok: 0.30, OutputPerMTok: 2.50},
}

const defaultPriceModel = "claude-sonnet-4-5"

// lookupPrice resolves a model id to its pricing: exact match first, then a
// case-insensitive substring match in either direction, then the default
// model's pricing so cost is always estimable.
func lookupPrice(model string) modelPrice {
	if p, ok := priceTable[model]; ok {
		return p
	}
	lower := strings.ToLower(model)
	for id, p := range priceTable {
		if lower != "" && (strings.Contains(lower, id) || strings.Contains(id, lower)) {
			return p
		}
	}
	return priceTable[defaultPriceModel]
}

// estimateCost computes turn cost from token counts when the provider does
// not report a cost itself.
func estimateCost(model string, inputTokens, outputTokens int) float64 {
	p := lookupPrice(model)
	return float64(inputTokens)/1e6*p.InputPerMTok + float64(outputTokens)/1e6*p.OutputPerMTok
}

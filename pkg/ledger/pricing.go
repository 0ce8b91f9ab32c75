package ledger

import "nextrust/pkg/protocol"

// ModelPrice is the per-1K-token USD price for one model.
type ModelPrice struct {
	InputPer1K  float64 `yaml:"input_per_1k" json:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k" json:"output_per_1k"`
}

// Pricing maps model names to their token prices. Unknown models cost zero,
// which keeps free-tier backends from polluting spend totals.
type Pricing map[string]ModelPrice

// Cost derives the USD cost breakdown for a call's token usage.
func (p Pricing) Cost(model string, tokens protocol.TokenCounts) protocol.CostBreakdown {
	price, ok := p[model]
	if !ok {
		return protocol.CostBreakdown{}
	}
	in := float64(tokens.Input) / 1000 * price.InputPer1K
	out := float64(tokens.Output) / 1000 * price.OutputPer1K
	return protocol.CostBreakdown{Input: in, Output: out, Total: in + out}
}

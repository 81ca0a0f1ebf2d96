package model

import "time"

// Usage holds token counts for one invocation and the prices derived from
// them. Prices stay zero when no PriceTable entry exists for the model.
type Usage struct {
	PromptTokens        int     `json:"prompt_tokens"`
	CompletionTokens    int     `json:"completion_tokens"`
	TotalTokens         int     `json:"total_tokens"`
	PromptUnitPrice     float64 `json:"prompt_unit_price"`
	PromptPrice         float64 `json:"prompt_price"`
	CompletionUnitPrice float64 `json:"completion_unit_price"`
	CompletionPrice     float64 `json:"completion_price"`
	TotalPrice          float64 `json:"total_price"`
	Currency            string  `json:"currency,omitempty"`

	// Latency is the wall time in seconds from invocation start until the
	// usage was computed.
	Latency float64 `json:"latency"`
}

// ModelPrice is the pricing of one model. Input and Output are prices per
// Unit tokens (e.g. Unit 0.001 means per thousand tokens).
type ModelPrice struct {
	Input    float64 `yaml:"input" json:"input"`
	Output   float64 `yaml:"output" json:"output"`
	Unit     float64 `yaml:"unit" json:"unit"`
	Currency string  `yaml:"currency" json:"currency"`
}

// PriceTable maps model names to their pricing.
type PriceTable map[string]ModelPrice

// CalcUsage builds a Usage from raw token counts, pricing it from the table
// when an entry for the model exists.
func (t PriceTable) CalcUsage(model string, promptTokens, completionTokens int, started time.Time) Usage {
	u := Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
	if !started.IsZero() {
		u.Latency = time.Since(started).Seconds()
	}

	price, ok := t[model]
	if !ok {
		return u
	}
	unit := price.Unit
	if unit == 0 {
		unit = 1
	}
	u.PromptUnitPrice = price.Input
	u.CompletionUnitPrice = price.Output
	u.PromptPrice = float64(promptTokens) * unit * price.Input
	u.CompletionPrice = float64(completionTokens) * unit * price.Output
	u.TotalPrice = u.PromptPrice + u.CompletionPrice
	u.Currency = price.Currency
	return u
}

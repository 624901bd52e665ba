// Package billing meters the monetary cost of interactions and maintains
// the per-user credit ledger.
package billing

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// USDPerCredit converts selling price to credits: 1000 credits per dollar.
	USDPerCredit = 0.001
	// ProfitMarginMultiplier marks provider cost up by 50%.
	ProfitMarginMultiplier = 1.5

	encodingName = "o200k_base"
)

type ModelPricing struct {
	Prompt     float64 // USD per input token
	Completion float64 // USD per output token
}

var llmPricing = map[string]ModelPricing{
	"gpt-4o":                 {Prompt: 2.50 / 1_000_000, Completion: 10.00 / 1_000_000},
	"gpt-4o-mini":            {Prompt: 0.150 / 1_000_000, Completion: 0.600 / 1_000_000},
	"gpt-4-turbo":            {Prompt: 10.00 / 1_000_000, Completion: 30.00 / 1_000_000},
	"gpt-4-turbo-preview":    {Prompt: 10.00 / 1_000_000, Completion: 30.00 / 1_000_000},
	"gpt-4":                  {Prompt: 30.00 / 1_000_000, Completion: 60.00 / 1_000_000},
	"gpt-4-32k":              {Prompt: 60.00 / 1_000_000, Completion: 120.00 / 1_000_000},
	"gpt-3.5-turbo":          {Prompt: 0.50 / 1_000_000, Completion: 1.50 / 1_000_000},
	"gpt-3.5-turbo-1106":     {Prompt: 1.00 / 1_000_000, Completion: 2.00 / 1_000_000},
	"text-embedding-3-large": {Prompt: 0.13 / 1_000_000},
	"text-embedding-3-small": {Prompt: 0.02 / 1_000_000},
	"text-embedding-ada-002": {Prompt: 0.10 / 1_000_000},
	"o1-mini":                {Prompt: 1.10 / 1_000_000, Completion: 4.40 / 1_000_000},
}

// fallbackPricing is used for model identifiers missing from the table.
var fallbackPricing = ModelPricing{Prompt: 1.00 / 1_000_000, Completion: 2.00 / 1_000_000}

// PricingFor returns the pricing row for the model, falling back for
// unrecognized identifiers.
func PricingFor(model string) ModelPricing {
	if p, ok := llmPricing[model]; ok {
		return p
	}
	return fallbackPricing
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts tokens with the o200k_base encoding. When the
// tokenizer is unavailable it falls back to a rough four-characters-per-
// token estimate.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// ProviderCost estimates the USD cost of one exchange. Both the prompt and
// completion token counts are taken from the same text; the original system
// billed this way and the simplification is kept deliberately.
func ProviderCost(text, model string) float64 {
	pricing := PricingFor(model)
	inputTokens := CountTokens(text)
	outputTokens := CountTokens(text)
	return pricing.Prompt*float64(inputTokens) + pricing.Completion*float64(outputTokens)
}

// CreditsToDeduct converts a provider cost into whole credits: apply the
// margin, divide by the credit rate, round up, and charge at least one
// credit for any non-zero cost.
func CreditsToDeduct(costUSD float64) int {
	if costUSD < 0 {
		return 0
	}
	sellingPrice := costUSD * ProfitMarginMultiplier
	credits := int(math.Ceil(sellingPrice / USDPerCredit))
	if sellingPrice > 0 && credits == 0 {
		credits = 1
	}
	return credits
}

// CreditsForPurchase converts a one-time USD payment into credits, rounding
// down in the user's disfavor.
func CreditsForPurchase(paymentUSD float64) int {
	if paymentUSD <= 0 {
		return 0
	}
	return int(math.Floor(paymentUSD / USDPerCredit))
}

package llm

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Per-million-token prices, late 2025. Update as needed.
var (
	million       = decimal.NewFromInt(1_000_000)
	haikuInPrice  = decimal.RequireFromString("0.25")
	haikuOutPrice = decimal.RequireFromString("1.25")
	miniInPrice   = decimal.RequireFromString("0.15")
	miniOutPrice  = decimal.RequireFromString("0.60")
)

// EstimateCostUSD returns a rough cost estimate for a call.
// Local calls are free; unknown paid models return ok=false.
func EstimateCostUSD(provider, model string, inputTokens, outputTokens int) (cost decimal.Decimal, ok bool) {
	if provider == "ollama" {
		return decimal.Zero, true
	}

	in := decimal.NewFromInt(int64(inputTokens))
	out := decimal.NewFromInt(int64(outputTokens))
	lower := strings.ToLower(model)

	switch {
	case strings.Contains(lower, "haiku"):
		return in.Mul(haikuInPrice).Div(million).Add(out.Mul(haikuOutPrice).Div(million)), true
	case strings.Contains(lower, "gpt-4o-mini"):
		return in.Mul(miniInPrice).Div(million).Add(out.Mul(miniOutPrice).Div(million)), true
	}
	return decimal.Zero, false
}

// Package pricing converts forecast consumption into money using a flat
// per-unit tariff (price per kVAh, rounding rule).
package pricing

import (
	"github.com/shopspring/decimal"
)

// Tariff defines how predicted consumption is priced.
type Tariff struct {
	// PricePerUnit is the price of one unit of consumption (e.g. ₹ per kVAh).
	// Negative prices are treated as zero.
	PricePerUnit float64

	// Places is the number of decimal places kept after rounding.
	// Negative values are treated as zero.
	Places int32

	// RoundingMode controls how the product is rounded to Places.
	// "half-up" (default, half away from zero), "bank" (half to even), "floor" or "ceil".
	RoundingMode string
}

// DefaultTariff returns ₹6.50 per kVAh rounded half-up to paise.
func DefaultTariff() Tariff {
	return Tariff{PricePerUnit: 6.50, Places: 2, RoundingMode: "half-up"}
}

// Cost prices consumption under the tariff.
func (t Tariff) Cost(consumption float64) decimal.Decimal {
	t = t.sanitize()
	raw := decimal.NewFromFloat(consumption).Mul(decimal.NewFromFloat(t.PricePerUnit))
	return round(raw, t.Places, t.RoundingMode)
}

// Total prices each consumption value and returns the sum of the rounded costs.
func (t Tariff) Total(consumption []float64) decimal.Decimal {
	total := decimal.Zero
	for _, c := range consumption {
		total = total.Add(t.Cost(c))
	}
	return total
}

func (t Tariff) sanitize() Tariff {
	if t.PricePerUnit < 0 {
		t.PricePerUnit = 0
	}
	if t.Places < 0 {
		t.Places = 0
	}
	return t
}

func round(d decimal.Decimal, places int32, mode string) decimal.Decimal {
	switch mode {
	case "bank":
		return d.RoundBank(places)
	case "floor":
		return d.RoundFloor(places)
	case "ceil":
		return d.RoundCeil(places)
	default: // "half-up" or anything else
		return d.Round(places)
	}
}

package recon

import (
	"github.com/shopspring/decimal"

	"CustodianSync/internal/domain/models"
)

// FieldKind selects which tolerance band applies to a compared field.
type FieldKind int

const (
	FieldMarketValue FieldKind = iota
	FieldPrice
	FieldCash
	FieldQuantity
)

// Tolerances holds the configured per-field tolerance bands. Market
// value and price use relative basis-point bands; cash uses an absolute
// band; quantity is exact by default.
type Tolerances struct {
	MarketValueBps float64
	PriceBps       float64
	CashAbsolute   float64
	QuantityExact  bool
}

// DefaultTolerances are used when configuration leaves a band unset.
func DefaultTolerances() Tolerances {
	return Tolerances{
		MarketValueBps: 10,
		PriceBps:       5,
		CashAbsolute:   0.01,
		QuantityExact:  true,
	}
}

// Check computes a field discrepancy with its tolerance verdict.
// Decimal arithmetic keeps monetary comparisons free of float drift.
func (t Tolerances) Check(field string, kind FieldKind, expected, actual float64) models.Discrepancy {
	e := decimal.NewFromFloat(expected)
	a := decimal.NewFromFloat(actual)
	diff := e.Sub(a).Abs()

	var band decimal.Decimal
	switch kind {
	case FieldMarketValue:
		band = e.Abs().Mul(decimal.NewFromFloat(t.MarketValueBps)).Div(decimal.NewFromInt(10000))
	case FieldPrice:
		band = e.Abs().Mul(decimal.NewFromFloat(t.PriceBps)).Div(decimal.NewFromInt(10000))
	case FieldCash:
		band = decimal.NewFromFloat(t.CashAbsolute)
	case FieldQuantity:
		if t.QuantityExact {
			band = decimal.Zero
		} else {
			band = decimal.NewFromFloat(1e-6)
		}
	}

	difference, _ := e.Sub(a).Float64()
	return models.Discrepancy{
		Field:           field,
		Expected:        expected,
		Actual:          actual,
		Difference:      difference,
		WithinTolerance: diff.LessThanOrEqual(band),
	}
}

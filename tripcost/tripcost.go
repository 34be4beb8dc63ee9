// Package tripcost derives a trip's total cost from a snapshot of its cost-bearing records.
//
// All arithmetic is fixed point (shopspring/decimal). Rounding is half away from zero
// to two places, applied to each diesel line and once more to the grand total.
package tripcost

import "github.com/shopspring/decimal"

// Places is the number of decimal places every money value is rounded to
const Places = 2

// MaxAmount bounds a single itemized amount. Up to it, an amount rounded to Places has
// at most 15 significant digits, so its stored double converts to the same decimal
// everywhere.
const MaxAmount = 1e12

// Purchase is the cost-bearing part of a diesel purchase
type Purchase struct {
	Quantity  float64
	UnitPrice float64
}

// Snapshot holds everything the total is computed from
type Snapshot struct {
	Purchases []Purchase

	FastTagCost        float64
	McdCost            float64
	GreenTaxCost       float64
	RtoCost            float64
	DtoCost            float64
	MunicipalitiesCost float64
	BorderCost         float64
	RepairCost         float64

	// EventSums holds the pre-summed amounts of each itemized event variant,
	// keyed by variant name. They stack on top of the direct fields.
	EventSums map[string]decimal.Decimal
}

// Round applies the package rounding rule
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// PurchaseCost returns round(quantity × unit price, 2)
func PurchaseCost(quantity, unitPrice float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice)))
}

// DieselCost sums the rounded cost of every purchase
func DieselCost(purchases []Purchase) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range purchases {
		sum = sum.Add(PurchaseCost(p.Quantity, p.UnitPrice))
	}
	return sum
}

// SplitCommission is rto + dto + municipalities + border
func (s Snapshot) SplitCommission() decimal.Decimal {
	return sumFloats(s.RtoCost, s.DtoCost, s.MunicipalitiesCost, s.BorderCost)
}

// Events sums every entry of EventSums
func (s Snapshot) Events() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range s.EventSums {
		sum = sum.Add(v)
	}
	return sum
}

// Total computes the trip total. It never rejects input.
func Total(s Snapshot) decimal.Decimal {
	total := DieselCost(s.Purchases).
		Add(sumFloats(s.FastTagCost, s.McdCost, s.GreenTaxCost, s.RepairCost)).
		Add(s.SplitCommission()).
		Add(s.Events())
	return Round(total)
}

// Amount rounds a single itemized amount the way it is stored and summed
func Amount(v float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(v))
}

// Float converts a rounded total to the float64 stored on the trip
func Float(d decimal.Decimal) float64 {
	f, _ := Round(d).Float64()
	return f
}

func sumFloats(values ...float64) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum
}

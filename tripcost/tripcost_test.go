package tripcost_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/truck-ledger-api/tripcost"
)

func TestTotal_Empty(t *testing.T) {
	assert.Equal(t, "0.00", tripcost.Total(tripcost.Snapshot{}).StringFixed(2))
}

func TestTotal_DieselAndDirectFields(t *testing.T) {
	s := tripcost.Snapshot{
		Purchases:    []tripcost.Purchase{{Quantity: 100, UnitPrice: 95.5}},
		FastTagCost:  50,
		McdCost:      20,
		GreenTaxCost: 10,
	}
	assert.Equal(t, "9630.00", tripcost.Total(s).StringFixed(2))

	s.Purchases = append(s.Purchases, tripcost.Purchase{Quantity: 50, UnitPrice: 90})
	assert.Equal(t, "14130.00", tripcost.Total(s).StringFixed(2))
}

func TestTotal_RemovingPurchaseSubtractsItsRoundedCost(t *testing.T) {
	removed := tripcost.Purchase{Quantity: 33.3, UnitPrice: 91.47}
	s := tripcost.Snapshot{
		Purchases:   []tripcost.Purchase{{Quantity: 100, UnitPrice: 95.5}, removed},
		FastTagCost: 12.5,
	}
	before := tripcost.Total(s)

	s.Purchases = s.Purchases[:1]
	after := tripcost.Total(s)

	assert.True(t, before.Sub(after).Equal(tripcost.PurchaseCost(removed.Quantity, removed.UnitPrice)))
}

func TestTotal_SplitCommissionAndRepairAndEvents(t *testing.T) {
	s := tripcost.Snapshot{
		RtoCost:            100,
		DtoCost:            200,
		MunicipalitiesCost: 30,
		BorderCost:         40,
		RepairCost:         5.25,
		EventSums: map[string]decimal.Decimal{
			"fastTag":  decimal.RequireFromString("10.10"),
			"repair":   decimal.RequireFromString("1.01"),
			"border":   decimal.RequireFromString("2"),
			"greenTax": decimal.Zero,
		},
	}
	assert.Equal(t, "370.00", s.SplitCommission().StringFixed(2))
	assert.Equal(t, "13.11", s.Events().StringFixed(2))
	assert.Equal(t, "388.36", tripcost.Total(s).StringFixed(2))
}

func TestPurchaseCost_RoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		name      string
		quantity  float64
		unitPrice float64
		want      string
	}{
		{"exact", 100, 95.5, "9550.00"},
		{"half up", 0.5, 0.25, "0.13"},
		{"binary unfriendly half", 1, 2.675, "2.68"},
		{"negative half", 1, -2.675, "-2.68"},
		{"below half", 3, 0.331, "0.99"},
		{"zero quantity", 0, 95.5, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tripcost.PurchaseCost(tt.quantity, tt.unitPrice).StringFixed(2))
		})
	}
}

func TestAmount_RoundsToCents(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{25, "25.00"},
		{0.005, "0.01"},
		{-0.005, "-0.01"},
		{1234567890.125, "1234567890.13"},
		{0.1234567890123456, "0.12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tripcost.Amount(tt.in).StringFixed(2))
	}
}

func TestTotal_LineItemsSumToTotal(t *testing.T) {
	purchases := []tripcost.Purchase{
		{Quantity: 10.5, UnitPrice: 1.333},
		{Quantity: 7.25, UnitPrice: 93.17},
		{Quantity: 0.1, UnitPrice: 0.05},
	}
	lines := decimal.Zero
	for _, p := range purchases {
		lines = lines.Add(tripcost.PurchaseCost(p.Quantity, p.UnitPrice))
	}

	s := tripcost.Snapshot{Purchases: purchases, McdCost: 1.5}
	assert.True(t, tripcost.Total(s).Equal(lines.Add(decimal.NewFromFloat(1.5))))
}

func TestTotal_OrderIndependent(t *testing.T) {
	a := tripcost.Purchase{Quantity: 10.5, UnitPrice: 1.333}
	b := tripcost.Purchase{Quantity: 0.1, UnitPrice: 0.3}
	c := tripcost.Purchase{Quantity: 44.44, UnitPrice: 92.19}

	forward := tripcost.Total(tripcost.Snapshot{Purchases: []tripcost.Purchase{a, b, c}, GreenTaxCost: 0.7})
	reverse := tripcost.Total(tripcost.Snapshot{Purchases: []tripcost.Purchase{c, b, a}, GreenTaxCost: 0.7})

	assert.True(t, forward.Equal(reverse))
}

func TestTotal_Idempotent(t *testing.T) {
	s := tripcost.Snapshot{
		Purchases:   []tripcost.Purchase{{Quantity: 12.34, UnitPrice: 56.78}},
		BorderCost:  0.1,
		FastTagCost: 0.2,
	}
	assert.True(t, tripcost.Total(s).Equal(tripcost.Total(s)))
	assert.Equal(t, 700.97, tripcost.Float(tripcost.Total(s)))
}

func TestTotal_AcceptsNegativeInput(t *testing.T) {
	s := tripcost.Snapshot{
		Purchases: []tripcost.Purchase{{Quantity: -1, UnitPrice: 10}},
		McdCost:   25,
	}
	assert.Equal(t, "15.00", tripcost.Total(s).StringFixed(2))
}

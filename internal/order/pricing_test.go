package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxRate(t *testing.T) {
	tests := []struct {
		province string
		want     float64
	}{
		{"QC", 0.15},
		{"ON", 0.13},
		{"AB", 0.05},
		{"BC", 0.12},
		{"NS", 0.14},
		{"YT", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TaxRate(tt.province), "province %q", tt.province)
	}
}

func TestTaxInclusiveTotal(t *testing.T) {
	// The stored value is subtotal plus tax as one amount.
	assert.InDelta(t, 64.63, TaxInclusiveTotal(56.20, "QC"), 0.001)
	assert.InDelta(t, 113.0, TaxInclusiveTotal(100, "ON"), 0.001)
	assert.InDelta(t, 100.0, TaxInclusiveTotal(100, "XX"), 0.001)
}

func TestShippingCost(t *testing.T) {
	tests := []struct {
		weight int
		want   float64
	}{
		{0, 5},
		{499, 5},
		{500, 5},
		{501, 10},
		{2000, 10},
		{2001, 25},
		{100000, 25},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ShippingCost(tt.weight), "weight %d", tt.weight)
	}
}

func TestSubtotal(t *testing.T) {
	lines := []Line{
		{ProductID: 1, Quantity: 2, UnitPrice: 10.55},
		{ProductID: 2, Quantity: 1, UnitPrice: 3.99},
	}
	assert.InDelta(t, 25.09, Subtotal(lines), 0.001)
	assert.Zero(t, Subtotal(nil))
}

func TestOrderStateDerivation(t *testing.T) {
	o := &Order{}
	assert.Equal(t, StateOpen, o.State())

	tax := 64.63
	shipping := 5.0
	o.TotalPriceTax = &tax
	o.ShippingPrice = &shipping
	assert.Equal(t, StateAddressed, o.State())
	assert.InDelta(t, 69.63, o.ChargeAmount(), 0.001)

	o.Paid = true
	assert.Equal(t, StatePaid, o.State())
}

func TestTotalWeight(t *testing.T) {
	o := &Order{Lines: []Line{
		{Quantity: 2, Weight: 400},
		{Quantity: 1, Weight: 150},
	}}
	assert.Equal(t, 950, o.TotalWeight())
}

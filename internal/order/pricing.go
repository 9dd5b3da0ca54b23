package order

import "math"

// taxRates maps province code to sales tax rate. Unknown provinces charge no
// tax rather than failing; the shop ships tax-free outside these five.
var taxRates = map[string]float64{
	"QC": 0.15,
	"ON": 0.13,
	"AB": 0.05,
	"BC": 0.12,
	"NS": 0.14,
}

// shippingBands is an ordered scan: first band whose upper bound is >= the
// total weight wins, boundaries inclusive. The last band catches everything.
var shippingBands = []struct {
	maxWeight int
	price     float64
}{
	{500, 5},
	{2000, 10},
	{math.MaxInt, 25},
}

// TaxRate returns the rate for a province code, 0 for unknown codes.
func TaxRate(province string) float64 {
	return taxRates[province]
}

// TaxInclusiveTotal computes the stored "total_price_tax" value: the subtotal
// plus tax as a single amount, not the tax delta alone.
func TaxInclusiveTotal(subtotal float64, province string) float64 {
	return round2(subtotal * (1 + TaxRate(province)))
}

// ShippingCost looks up the banded rate for a total weight.
func ShippingCost(totalWeight int) float64 {
	for _, band := range shippingBands {
		if totalWeight <= band.maxWeight {
			return band.price
		}
	}
	// Unreachable: the last band's bound is MaxInt.
	return shippingBands[len(shippingBands)-1].price
}

// Subtotal sums unit price × quantity over the lines.
func Subtotal(lines []Line) float64 {
	var total float64
	for _, l := range lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return round2(total)
}

// round2 rounds to cents. Amounts live as float64 across the system, so
// every computed total is snapped to 2 decimals at the boundary where it is
// produced.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

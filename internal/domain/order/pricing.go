package order

import "github.com/shopspring/decimal"

// Pricing holds the store-wide charges applied at checkout.
type Pricing struct {
	TaxRate               decimal.Decimal
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

type Totals struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Quote prices lines. Tax is rounded to two places; delivery is free once the subtotal
// reaches the threshold.
func (p Pricing) Quote(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)
	fee := p.DeliveryFee
	if subtotal.GreaterThanOrEqual(p.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}
	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal.Add(tax).Add(fee),
	}
}

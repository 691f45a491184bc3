package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// reconcileTolerance absorbs per-line rounding on printed receipts
var reconcileTolerance = decimal.RequireFromString("0.01")

// Discrepancy is an arithmetic relationship on a receipt that does not hold
type Discrepancy struct {
	Field    string  `json:"field"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: expected %.2f, found %.2f", d.Field, d.Expected, d.Actual)
}

// Reconcile checks the receipt's arithmetic: each line total against unit
// price, quantity and discount; the subtotal against the line totals; and
// the total against subtotal, overall discounts and tax. It never modifies
// the receipt. Tips and fees the model did not report show up as a total
// discrepancy.
func Reconcile(r *Receipt) []Discrepancy {
	var out []Discrepancy
	check := func(field string, expected, actual decimal.Decimal) {
		if expected.Sub(actual).Abs().GreaterThan(reconcileTolerance) {
			out = append(out, Discrepancy{
				Field:    field,
				Expected: expected.InexactFloat64(),
				Actual:   actual.InexactFloat64(),
			})
		}
	}

	lineSum := decimal.Zero
	for i, li := range r.LineItems {
		expected := decimal.NewFromFloat(li.OriginalUnitPrice).Mul(decimal.NewFromFloat(li.Quantity))
		if li.LineItemDiscountAmount != nil {
			expected = expected.Sub(decimal.NewFromFloat(*li.LineItemDiscountAmount))
		}
		total := decimal.NewFromFloat(li.TotalPrice)
		check(fmt.Sprintf("line_items[%d].total_price", i), expected, total)
		lineSum = lineSum.Add(total)
	}

	var base decimal.Decimal
	switch {
	case r.Subtotal != nil:
		base = decimal.NewFromFloat(*r.Subtotal)
		if len(r.LineItems) > 0 {
			check("subtotal", lineSum, base)
		}
	case len(r.LineItems) > 0:
		base = lineSum
	default:
		return out
	}

	expectedTotal := base
	for _, d := range r.OverallDiscounts {
		expectedTotal = expectedTotal.Sub(decimal.NewFromFloat(d.Amount).Abs())
	}
	if r.TaxAmount != nil {
		expectedTotal = expectedTotal.Add(decimal.NewFromFloat(*r.TaxAmount))
	}
	check("total_amount", expectedTotal, decimal.NewFromFloat(r.TotalAmount))

	return out
}

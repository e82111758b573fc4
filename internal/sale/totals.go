package sale

import (
	"github.com/shopspring/decimal"

	"puntoventa/backend/internal/domain"
)

// ComputeTotals aggregates resolved lines into subtotal, tax and grand total.
// Each line's tax contribution is rounded to 2 decimal places at the line,
// not after aggregation, so many small lines cannot accumulate rounding
// drift. Pure function: same lines in, same totals out.
func ComputeTotals(lines []domain.ResolvedLine) (domain.SaleTotals, error) {
	subtotal := decimal.Zero
	taxAmount := decimal.Zero

	for _, line := range lines {
		rate, err := TaxRate(line.TaxClass)
		if err != nil {
			return domain.SaleTotals{}, err
		}
		lineSubtotal := line.LineSubtotal.Round(2)
		subtotal = subtotal.Add(lineSubtotal)
		taxAmount = taxAmount.Add(lineSubtotal.Mul(rate).Round(2))
	}

	return domain.SaleTotals{
		Subtotal:   subtotal,
		TaxAmount:  taxAmount,
		GrandTotal: subtotal.Add(taxAmount),
	}, nil
}

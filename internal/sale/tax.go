// Package sale holds the pure pieces of the sale engine: line validation
// against product snapshots and monetary totals. Both the service layer and
// the store committers run these, so the commit-time recheck cannot drift
// from the pre-validation rules.
package sale

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
)

var taxRates = map[string]decimal.Decimal{
	domain.TaxClassStandard: decimal.NewFromFloat(0.12),
	domain.TaxClassExempt:   decimal.Zero,
}

// NormalizeTaxClass maps an incoming tax class to its canonical name. An
// empty class means standard rate.
func NormalizeTaxClass(class string) (string, error) {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "" {
		return domain.TaxClassStandard, nil
	}
	if _, ok := taxRates[class]; !ok {
		return "", fmt.Errorf("%q: %w", class, store.ErrInvalidTaxClass)
	}
	return class, nil
}

// TaxRate returns the rate applied to a line's subtotal for the given class.
func TaxRate(class string) (decimal.Decimal, error) {
	normalized, err := NormalizeTaxClass(class)
	if err != nil {
		return decimal.Zero, err
	}
	return taxRates[normalized], nil
}

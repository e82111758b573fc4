package sale

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
)

func snapshots() map[string]domain.ProductSnapshot {
	return map[string]domain.ProductSnapshot{
		"prod-cola": {ID: "prod-cola", Name: "Cola 355ml", SalePrice: decimal.RequireFromString("10.00"), Stock: 48},
		"prod-agua": {ID: "prod-agua", Name: "Agua 600ml", SalePrice: decimal.RequireFromString("0.50"), Stock: 5},
		"prod-pan":  {ID: "prod-pan", Name: "Pan integral", SalePrice: decimal.RequireFromString("1.35"), Stock: 3},
	}
}

func TestNormalizeTaxClass(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", domain.TaxClassStandard},
		{"standard", domain.TaxClassStandard},
		{"  Exempt ", domain.TaxClassExempt},
		{"EXEMPT", domain.TaxClassExempt},
	}
	for _, tc := range cases {
		got, err := NormalizeTaxClass(tc.in)
		require.NoError(t, err, "class %q", tc.in)
		assert.Equal(t, tc.want, got)
	}

	_, err := NormalizeTaxClass("reduced")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidTaxClass)
}

func TestValidateLinesResolvesServerPrices(t *testing.T) {
	req := domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-cola", Quantity: 2},
		{ProductID: "prod-agua", Quantity: 3, TaxClass: "exempt"},
	}}

	resolved, err := ValidateLines(req, snapshots())
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	assert.Equal(t, "Cola 355ml", resolved[0].ProductName)
	assert.True(t, resolved[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, resolved[0].LineSubtotal.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, domain.TaxClassStandard, resolved[0].TaxClass)

	assert.True(t, resolved[1].LineSubtotal.Equal(decimal.RequireFromString("1.50")))
	assert.Equal(t, domain.TaxClassExempt, resolved[1].TaxClass)
}

func TestValidateLinesCumulativeStock(t *testing.T) {
	// Two lines of 3 against a stock of 5: each line alone fits, the sum
	// does not.
	req := domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-agua", Quantity: 3},
		{ProductID: "prod-agua", Quantity: 3},
	}}

	_, err := ValidateLines(req, snapshots())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "prod-agua", stockErr.ProductID)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)
}

func TestValidateLinesRejectsWholeRequest(t *testing.T) {
	req := domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-cola", Quantity: 1},
		{ProductID: "prod-missing", Quantity: 1},
	}}

	_, err := ValidateLines(req, snapshots())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestValidateLinesInputErrors(t *testing.T) {
	_, err := ValidateLines(domain.SaleRequest{}, snapshots())
	assert.ErrorIs(t, err, store.ErrEmptySale)

	_, err = ValidateLines(domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-cola", Quantity: 0},
	}}, snapshots())
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = ValidateLines(domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "", Quantity: 1},
	}}, snapshots())
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = ValidateLines(domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-cola", Quantity: 1, TaxClass: "luxury"},
	}}, snapshots())
	assert.ErrorIs(t, err, store.ErrInvalidTaxClass)
}

func TestComputeTotalsStandardRate(t *testing.T) {
	resolved, err := ValidateLines(domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-cola", Quantity: 2},
	}}, snapshots())
	require.NoError(t, err)

	totals, err := ComputeTotals(resolved)
	require.NoError(t, err)
	assert.Equal(t, "20.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "2.40", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "22.40", totals.GrandTotal.StringFixed(2))
}

func TestComputeTotalsMixedTaxClasses(t *testing.T) {
	resolved, err := ValidateLines(domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-cola", Quantity: 1},
		{ProductID: "prod-pan", Quantity: 3, TaxClass: "exempt"},
	}}, snapshots())
	require.NoError(t, err)

	totals, err := ComputeTotals(resolved)
	require.NoError(t, err)
	// 10.00 standard + 4.05 exempt; tax only on the standard line.
	assert.Equal(t, "14.05", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "1.20", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "15.25", totals.GrandTotal.StringFixed(2))
}

func TestComputeTotalsPerLineRounding(t *testing.T) {
	// Tax is rounded per line: 0.50 yields 0.06 each time, never a pooled
	// 0.12 from 2x0.06 drift.
	lines := []domain.ResolvedLine{
		{ProductID: "a", Quantity: 1, UnitPrice: decimal.RequireFromString("0.47"), LineSubtotal: decimal.RequireFromString("0.47"), TaxClass: domain.TaxClassStandard},
		{ProductID: "b", Quantity: 1, UnitPrice: decimal.RequireFromString("0.47"), LineSubtotal: decimal.RequireFromString("0.47"), TaxClass: domain.TaxClassStandard},
	}

	totals, err := ComputeTotals(lines)
	require.NoError(t, err)
	// 0.47 * 0.12 = 0.0564, rounded per line to 0.06, summed to 0.12.
	// Aggregating first (0.94 * 0.12 = 0.1128) would give 0.11.
	assert.Equal(t, "0.94", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "0.12", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "1.06", totals.GrandTotal.StringFixed(2))
}

func TestComputeTotalsDeterministic(t *testing.T) {
	resolved, err := ValidateLines(domain.SaleRequest{Lines: []domain.SaleLineRequest{
		{ProductID: "prod-cola", Quantity: 2},
		{ProductID: "prod-agua", Quantity: 4},
	}}, snapshots())
	require.NoError(t, err)

	first, err := ComputeTotals(resolved)
	require.NoError(t, err)
	second, err := ComputeTotals(resolved)
	require.NoError(t, err)

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.TaxAmount.Equal(second.TaxAmount))
	assert.True(t, first.GrandTotal.Equal(second.GrandTotal))
}

func TestComputeTotalsEmpty(t *testing.T) {
	totals, err := ComputeTotals(nil)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.GrandTotal.IsZero())
}

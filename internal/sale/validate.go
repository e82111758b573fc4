package sale

import (
	"fmt"

	"github.com/shopspring/decimal"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
)

// ValidateLines resolves each requested line against the given product
// snapshots. Unit prices always come from the snapshot; caller-supplied
// prices are never consulted. The whole request is rejected on the first
// failure, so a valid line is never processed alongside an invalid one.
//
// Stock is checked cumulatively: quantities for the same product across
// multiple lines are summed before comparing against the snapshot, so two
// lines of 3 against a stock of 5 are rejected even though each line alone
// would fit.
func ValidateLines(req domain.SaleRequest, snapshots map[string]domain.ProductSnapshot) ([]domain.ResolvedLine, error) {
	if len(req.Lines) == 0 {
		return nil, store.ErrEmptySale
	}

	requested := make(map[string]int, len(req.Lines))
	resolved := make([]domain.ResolvedLine, 0, len(req.Lines))

	for _, line := range req.Lines {
		if line.ProductID == "" {
			return nil, fmt.Errorf("line item without product id: %w", store.ErrInvalidInput)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("quantity %d for product %s: %w", line.Quantity, line.ProductID, store.ErrInvalidInput)
		}

		taxClass, err := NormalizeTaxClass(line.TaxClass)
		if err != nil {
			return nil, err
		}

		snap, ok := snapshots[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%s: %w", line.ProductID, store.ErrProductNotFound)
		}

		requested[line.ProductID] += line.Quantity
		if requested[line.ProductID] > snap.Stock {
			return nil, &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: requested[line.ProductID],
				Available: snap.Stock,
			}
		}

		subtotal := snap.SalePrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		resolved = append(resolved, domain.ResolvedLine{
			ProductID:    snap.ID,
			ProductName:  snap.Name,
			Quantity:     line.Quantity,
			UnitPrice:    snap.SalePrice,
			LineSubtotal: subtotal,
			TaxClass:     taxClass,
		})
	}

	return resolved, nil
}

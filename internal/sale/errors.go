package sale

import (
	"fmt"

	"puntoventa/backend/internal/store"
)

// InsufficientStockError reports the product whose aggregated requested
// quantity exceeds the available stock. It matches
// errors.Is(err, store.ErrInsufficientStock).
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == store.ErrInsufficientStock
}

package cart

import (
	"errors"
	"fmt"

	"bookstore-core/internal/apperr"
	"bookstore-core/internal/reference"
)

var (
	// -- Validation & Input --
	ErrBelowMinimum = reference.ErrInvalidQuantity
	ErrExceedsStock = errors.New("quantity exceeds available stock")

	// -- Resource State --
	ErrItemNotInCart = reference.ErrRecordNotFound

	// -- Upstream --
	ErrProductUnavailable = fmt.Errorf("%w: product details unavailable", apperr.ErrUpstream)
)

// StockWarning is returned when a quantity change asks for more than the
// product's display stock. It matches ErrExceedsStock.
type StockWarning struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (w *StockWarning) Error() string {
	return fmt.Sprintf("only %d in stock for %s, requested %d", w.Available, w.ProductID, w.Requested)
}

func (w *StockWarning) Is(target error) bool {
	return target == ErrExceedsStock
}

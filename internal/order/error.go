package order

import (
	"fmt"

	"bookstore-core/internal/apperr"
)

var (
	ErrOrderNotFound  = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrUnknownStatus  = fmt.Errorf("%w: unknown order status", apperr.ErrInvalidInput)
	ErrNotCancellable = fmt.Errorf("%w: order can no longer be cancelled", apperr.ErrInvalidTransition)
	ErrStaleOrder     = fmt.Errorf("%w: order was changed concurrently", apperr.ErrInvalidTransition)
	ErrAdminOnly      = fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
)

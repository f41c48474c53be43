package address

import (
	"fmt"

	"bookstore-core/internal/apperr"
)

var (
	ErrAddressNotFound = fmt.Errorf("address %w", apperr.ErrNotFound)
	ErrInvalidAddress  = fmt.Errorf("%w: address line, city and receiver are required", apperr.ErrInvalidInput)
)

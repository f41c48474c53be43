package checkout

import (
	"fmt"

	"bookstore-core/internal/apperr"
)

var (
	ErrEmptyCart      = apperr.ErrEmptyCart
	ErrMissingAddress = fmt.Errorf("%w: shipping address is required", apperr.ErrInvalidInput)
)

package reference

import (
	"fmt"

	"bookstore-core/internal/apperr"
)

var (
	// -- Validation & Input --
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", apperr.ErrInvalidInput)
	ErrMissingProduct  = fmt.Errorf("%w: product id is required", apperr.ErrInvalidInput)

	// -- Resource State --
	ErrRecordNotFound = fmt.Errorf("reference record %w", apperr.ErrNotFound)
	ErrAlreadyListed  = fmt.Errorf("product %w", apperr.ErrAlreadyExists)

	// -- Constants (External Systems) --
	PgUniqueViolation = "23505"
)

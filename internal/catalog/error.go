package catalog

import (
	"fmt"

	"bookstore-core/internal/apperr"
)

var ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)

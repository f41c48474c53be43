package cart

import "bookstore-core/internal/hydrate"

// View is the derived state of a hydrated cart.
type View struct {
	Items             []hydrate.Hydrated `json:"items"`
	ItemCount         int                `json:"itemCount"`
	Total             int64              `json:"total"`
	HasStockViolation bool               `json:"hasStockViolation"`
}

func NewView(items []hydrate.Hydrated) View {
	if items == nil {
		items = []hydrate.Hydrated{}
	}
	return View{
		Items:             items,
		ItemCount:         ItemCount(items),
		Total:             Total(items),
		HasStockViolation: HasStockViolation(items),
	}
}

// ItemCount sums the quantities of the hydrated items.
func ItemCount(items []hydrate.Hydrated) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Total prices every item at its hydrated (live) price.
func Total(items []hydrate.Hydrated) int64 {
	var total int64
	for _, it := range items {
		total += it.Product.Price * int64(it.Quantity)
	}
	return total
}

func HasStockViolation(items []hydrate.Hydrated) bool {
	for _, it := range items {
		if it.Quantity > it.Product.DisplayStock {
			return true
		}
	}
	return false
}

// CheckQuantityChange validates a requested quantity for item. Values below 1
// fail with ErrBelowMinimum; values above display stock fail with a
// *StockWarning. Neither is clamped.
func CheckQuantityChange(item hydrate.Hydrated, quantity int) error {
	if quantity < 1 {
		return ErrBelowMinimum
	}
	if quantity > item.Product.DisplayStock {
		return &StockWarning{
			ProductID: item.ProductID,
			Requested: quantity,
			Available: item.Product.DisplayStock,
		}
	}
	return nil
}

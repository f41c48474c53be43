package reference

import "time"

// Record is a lightweight pointer from a user to a catalog product.
// Quantity is meaningful for cart records only; wishlist records carry 1.
type Record struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// Policy decides what Add does when the product is already referenced.
type Policy int

const (
	// MergeDuplicates increments the existing record's quantity (cart).
	MergeDuplicates Policy = iota
	// RejectDuplicates fails with ErrAlreadyExists (wishlist).
	RejectDuplicates
)

// Table names the backing table of a reference store.
type Table string

const (
	TableCart     Table = "cart_items"
	TableWishlist Table = "wishlist_items"
)

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	copy(out, in)
	return out
}

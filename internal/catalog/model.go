package catalog

import "time"

// Product is the catalog's view of a book.
type Product struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Price        int64     `json:"price"`
	ImageURL     string    `json:"imageUrl"`
	Category     string    `json:"category"`
	DisplayStock int       `json:"displayStock"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StockResult is the outcome of a stock decrement.
type StockResult struct {
	ProductID string
	Remaining int
	// Applied is false when the decrement for this order was already recorded.
	Applied bool
}

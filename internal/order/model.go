package order

import (
	"time"

	"bookstore-core/internal/address"
	"bookstore-core/internal/payment"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// LineItem is the product snapshot frozen at order time.
type LineItem struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Price     int64  `json:"price"`
	Image     string `json:"image"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
}

func (li LineItem) Subtotal() int64 {
	return li.Price * int64(li.Quantity)
}

// StatusEntry is one append-only history record.
type StatusEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// Pricing holds the monetary fields of an order in whole currency units.
type Pricing struct {
	TotalAmount int64 `json:"totalAmount"`
	PlatformFee int64 `json:"platformFee"`
	ShippingFee int64 `json:"shippingFee"`
	Taxes       int64 `json:"taxes"`
	Discount    int64 `json:"discount"`
	FinalAmount int64 `json:"finalAmount"`
}

// Consistent reports whether FinalAmount matches its inputs.
func (p Pricing) Consistent() bool {
	return p.FinalAmount == p.TotalAmount+p.PlatformFee+p.ShippingFee+p.Taxes-p.Discount
}

// Summary is the derived pricing of a cart, never persisted.
type Summary struct {
	Pricing
	ItemCount int `json:"itemCount"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	LineItems       []LineItem      `json:"lineItems"`
	ShippingAddress address.Address `json:"shippingAddress"`
	OrderDate       time.Time       `json:"orderDate"`

	Status         Status            `json:"orderStatus"`
	PaymentStatus  PaymentStatus     `json:"paymentStatus"`
	PaymentMethod  payment.Method    `json:"paymentMethod"`
	PaymentDetails map[string]string `json:"paymentDetails,omitempty"`

	Pricing

	StatusHistory     []StatusEntry `json:"statusHistory"`
	TrackingID        string        `json:"trackingId"`
	EstimatedDelivery time.Time     `json:"estimatedDelivery"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Filter narrows an order listing. Zero values mean no constraint.
type Filter struct {
	UserID   string
	Statuses []Status
	Limit    int
	Offset   int
}

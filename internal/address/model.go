package address

import (
	"github.com/google/uuid"
)

// Address is a shipping address. Orders embed a copy taken at checkout.
type Address struct {
	ID     uuid.UUID `json:"id"`
	UserID string    `json:"userId"`

	Name         string `json:"name"`
	ReceiverName string `json:"receiverName"`
	Phone        string `json:"phone"`

	Address1 string  `json:"address1"`
	Address2 *string `json:"address2,omitempty"`

	City     string `json:"city"`
	Province string `json:"province"`
	Postal   string `json:"postalCode"`
	Country  string `json:"country"`

	IsDefault bool `json:"isDefault"`
	IsActive  bool `json:"-"`
}

type CreateAddressInput struct {
	Name         string  `json:"name"`
	ReceiverName string  `json:"receiverName"`
	Phone        string  `json:"phone"`
	AddressLine1 string  `json:"address1"`
	AddressLine2 *string `json:"address2"`
	City         string  `json:"city"`
	Province     string  `json:"province"`
	PostalCode   string  `json:"postalCode"`
	Country      string  `json:"country"`
	SetAsDefault bool    `json:"setAsDefault"`
}

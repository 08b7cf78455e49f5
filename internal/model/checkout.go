package model

import (
	"time"

	"github.com/google/uuid"
)

// Checkout is a draft of fulfillment details bound 1:1 to a cart. Fields stay
// optional while the draft is being edited; they are validated at confirm
// time, not at save time.
type Checkout struct {
	ID              uuid.UUID `json:"id" db:"id"`
	CartID          uuid.UUID `json:"cartId" db:"cart_id"`
	ShippingAddress string    `json:"shippingAddress" db:"shipping_address"`
	BillingAddress  string    `json:"billingAddress" db:"billing_address"`
	PaymentMethod   string    `json:"paymentMethod" db:"payment_method"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// MissingFields lists the required fields that are still empty. An empty
// result means the draft is complete enough to confirm.
func (c *Checkout) MissingFields() []string {
	var missing []string
	if c.ShippingAddress == "" {
		missing = append(missing, "shipping_address")
	}
	if c.BillingAddress == "" {
		missing = append(missing, "billing_address")
	}
	if c.PaymentMethod == "" {
		missing = append(missing, "payment_method")
	}
	return missing
}

// UpdateCheckoutRequest enumerates the mutable checkout fields. Nil pointers
// leave the stored value untouched.
type UpdateCheckoutRequest struct {
	ShippingAddress *string `json:"shippingAddress"`
	BillingAddress  *string `json:"billingAddress"`
	PaymentMethod   *string `json:"paymentMethod"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartStatusUnpaid  CartStatus = "unpaid"
	CartStatusPending CartStatus = "pending"
	CartStatusPaid    CartStatus = "paid"
	CartStatusExpired CartStatus = "expired"
)

// Cart is a customer's in-progress collection of selected products.
// A customer has at most one unpaid cart at a time; paid and expired
// are terminal states.
type Cart struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	CustomerID     *uuid.UUID `json:"customerId,omitempty" db:"customer_id"`
	Status         CartStatus `json:"status" db:"status"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	LastActivityAt time.Time  `json:"lastActivityAt" db:"last_activity_at"`
}

// CartItem is a line item in a cart. Quantity is always positive; a zero or
// negative update deletes the row instead.
type CartItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CartID    uuid.UUID `json:"-" db:"cart_id"`
	ProductID uuid.UUID `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
}

// CartItemView is a cart item joined with live product pricing. The line
// total is computed on read; it is only frozen at order-snapshot time.
type CartItemView struct {
	CartItem
	ProductName     string  `json:"productName"`
	UnitPrice       float64 `json:"unitPrice"`
	DiscountPercent int     `json:"discountPercent"`
}

// LineTotal returns price with discount applied, times quantity.
func (v *CartItemView) LineTotal() float64 {
	return v.UnitPrice * (1 - float64(v.DiscountPercent)/100) * float64(v.Quantity)
}

// CartView is a cart with its items and computed total.
type CartView struct {
	Cart
	Items []CartItemView `json:"items"`
	Total float64        `json:"total"`
}

// AddCartItemRequest is the payload for adding a product to a cart.
// Quantity is additive when the product is already in the cart.
type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// UpdateCartItemRequest is the payload for setting a cart item's quantity.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

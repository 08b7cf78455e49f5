package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusFailed          OrderStatus = "failed"
)

// Order is an immutable record of a confirmed purchase. Addresses and the
// payment method are snapshotted from the checkout draft at creation time.
// Exactly one order exists per cart.
type Order struct {
	ID                       uuid.UUID   `json:"id" db:"id"`
	CustomerID               *uuid.UUID  `json:"customerId,omitempty" db:"customer_id"`
	CartID                   uuid.UUID   `json:"cartId" db:"cart_id"`
	Status                   OrderStatus `json:"status" db:"status"`
	ShippingAddress          string      `json:"shippingAddress" db:"shipping_address"`
	BillingAddress           string      `json:"billingAddress" db:"billing_address"`
	PaymentMethod            string      `json:"paymentMethod" db:"payment_method"`
	PaymentReminderSent      bool        `json:"-" db:"payment_reminder_sent"`
	FinalPaymentReminderSent bool        `json:"-" db:"final_payment_reminder_sent"`
	CreatedAt                time.Time   `json:"createdAt" db:"created_at"`
}

// OrderItem is a frozen snapshot of a cart item at order-creation time.
// Future product price or name changes never affect it.
type OrderItem struct {
	ID              uuid.UUID `json:"-" db:"id"`
	OrderID         uuid.UUID `json:"-" db:"order_id"`
	ProductID       uuid.UUID `json:"productId" db:"product_id"`
	ProductName     string    `json:"productName" db:"product_name"`
	UnitPrice       float64   `json:"unitPrice" db:"unit_price"`
	DiscountPercent int       `json:"discountPercent" db:"discount_percent"`
	Quantity        int       `json:"quantity" db:"quantity"`
}

// LineTotal is computed from the snapshot, not from live product pricing.
func (i *OrderItem) LineTotal() float64 {
	return i.UnitPrice * (1 - float64(i.DiscountPercent)/100) * float64(i.Quantity)
}

// OrderTotal sums the line totals of the given snapshots.
func OrderTotal(items []OrderItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}

// OrderResponse is an order with its item snapshots and computed total.
type OrderResponse struct {
	Order
	Items []OrderItem `json:"items"`
	Total float64     `json:"total"`
}

// CreateOrderRequest identifies the confirmed cart to turn into an order.
type CreateOrderRequest struct {
	CartID uuid.UUID `json:"cartId"`
}

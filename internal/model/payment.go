package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment tracks settlement against an order. At most one non-failed payment
// exists per order; the reference is an opaque token handed to the provider
// and used to confirm settlement.
type Payment struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	OrderID      uuid.UUID     `json:"orderId" db:"order_id"`
	Amount       float64       `json:"amount" db:"amount"`
	Provider     string        `json:"provider" db:"provider"`
	Reference    string        `json:"reference" db:"reference"`
	Status       PaymentStatus `json:"status" db:"status"`
	PaymentAlert bool          `json:"-" db:"payment_alert"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
}

// InitiatePaymentRequest is the payload for starting a payment.
type InitiatePaymentRequest struct {
	OrderID  uuid.UUID `json:"orderId"`
	Provider string    `json:"provider"`
}

// ConfirmPaymentRequest carries the provider's settlement reference.
type ConfirmPaymentRequest struct {
	Reference string `json:"reference"`
}

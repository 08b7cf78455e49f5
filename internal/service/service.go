package service

import (
	"context"

	"shop-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CartService manages cart lifecycle and line-item mutation. All item
// mutations serialize on the cart row lock and are rejected once the cart
// leaves the unpaid state.
type CartService interface {
	// GetOrCreateCart returns the customer's live cart inside the sliding
	// TTL window, or atomically creates a fresh unpaid one.
	GetOrCreateCart(ctx context.Context, customerID uuid.UUID) (*model.CartView, error)

	// GetCartView returns the cart with items and computed total.
	GetCartView(ctx context.Context, cartID uuid.UUID) (*model.CartView, error)

	// ExpireCart transitions the cart to expired. Idempotent: a cart that
	// is already paid or expired is left untouched.
	ExpireCart(ctx context.Context, cartID uuid.UUID, reason string) error

	// AddItem adds a product to the cart, incrementing the quantity when
	// the product is already present. The returned bool reports whether a
	// new row was created.
	AddItem(ctx context.Context, cartID uuid.UUID, req *model.AddCartItemRequest) (*model.CartItem, bool, error)

	// UpdateItem sets an item's quantity. A quantity of zero or less
	// deletes the row (nil item returned); an unchanged quantity
	// short-circuits without recording cart activity.
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*model.CartItem, error)

	// RemoveItem deletes an item from the cart.
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
}

// CheckoutService manages the checkout draft and its confirmation, which
// gates the cart's transition out of unpaid.
type CheckoutService interface {
	// GetOrCreateDraft returns the cart's checkout draft, creating an
	// empty one when missing. Unpaid carts only.
	GetOrCreateDraft(ctx context.Context, cartID uuid.UUID) (*model.Checkout, error)

	// UpdateDraft applies the provided fields to the draft. Required
	// fields are validated at confirm time, not here.
	UpdateDraft(ctx context.Context, cartID uuid.UUID, req *model.UpdateCheckoutRequest) (*model.Checkout, error)

	// Confirm validates the draft, the cart contents and live stock, then
	// locks the cart by moving it to pending. Stock is only validated
	// here, never decremented, so confirmation is free to retry.
	Confirm(ctx context.Context, cartID uuid.UUID) (*model.Checkout, error)
}

// OrderService turns confirmed carts into immutable orders and owns the
// stock reservation that goes with it.
type OrderService interface {
	// CreateOrderWithCartRecovery wraps CreateOrderFromCheckout: a
	// validation failure reverts the cart to unpaid so the customer can
	// correct it and retry, then the error is re-returned.
	CreateOrderWithCartRecovery(ctx context.Context, cartID uuid.UUID) (*model.OrderResponse, error)

	// CreateOrderFromCheckout creates the order for a pending cart,
	// snapshotting items and decrementing stock in one transaction.
	// Idempotent: an existing order for the cart is returned unchanged.
	CreateOrderFromCheckout(ctx context.Context, cartID uuid.UUID) (*model.OrderResponse, error)

	// GetByID retrieves an order with its item snapshots, or nil.
	GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error)

	// Cancel restores stock, expires the bound cart and marks the order
	// cancelled. Idempotent: only awaiting-payment orders are affected.
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*model.Order, error)

	// MarkOrderPaid moves the order and its cart to paid inside the
	// caller's transaction. The cart must still be pending.
	MarkOrderPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error
}

// PaymentService tracks settlement against orders.
type PaymentService interface {
	// Initiate creates a pending payment for an eligible order.
	// Idempotent: an existing paid or pending payment is returned as-is.
	Initiate(ctx context.Context, req *model.InitiatePaymentRequest) (*model.Payment, error)

	// Confirm settles the payment identified by reference and moves the
	// order and cart to paid. A receipt notification is dispatched after
	// commit; its failure never rolls back the settlement.
	Confirm(ctx context.Context, reference string) (*model.Payment, error)
}

package repository

import (
	"context"
	"time"

	"shop-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines inventory-side data access for products.
// All stock mutation funnels through ApplyStockChange so alert flags and
// the initial-stock baseline stay consistent with the stock level.
type ProductRepository interface {
	// GetByID retrieves a single product, or nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// List retrieves all products ordered by name.
	List(ctx context.Context) ([]model.Product, error)

	// GetForUpdate retrieves a product inside the transaction with a row lock.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Product, error)

	// ApplyStockChange sets the product's stock to newStock within the
	// transaction. The product must have been loaded with GetForUpdate.
	// It reports whether this change crossed the low-stock threshold
	// downwards with the alert not yet sent.
	ApplyStockChange(ctx context.Context, tx pgx.Tx, product *model.Product, newStock int) (bool, error)
}

// CartRepository defines data access for carts and their line items.
type CartRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// GetByID retrieves a cart, or nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error)

	// GetForUpdate retrieves a cart inside the transaction with a row lock.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Cart, error)

	// FindLiveByCustomer returns the customer's most recently active
	// unpaid/pending cart with activity at or after cutoff, row-locked.
	// Returns nil when no such cart exists.
	FindLiveByCustomer(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, cutoff time.Time) (*model.Cart, error)

	// FindUnpaidByCustomer returns the customer's unpaid cart regardless
	// of activity age, row-locked, or nil. At most one exists under the
	// partial unique index.
	FindUnpaidByCustomer(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*model.Cart, error)

	// Create inserts a new cart. The partial unique index on
	// (customer_id) WHERE status = 'unpaid' surfaces duplicate creation
	// as a unique violation.
	Create(ctx context.Context, tx pgx.Tx, cart *model.Cart) error

	// UpdateStatus sets the cart status within the transaction.
	UpdateStatus(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, status model.CartStatus) error

	// ForceStatus sets the cart status outside any caller transaction.
	// Used by cart recovery after a rolled-back order creation.
	ForceStatus(ctx context.Context, cartID uuid.UUID, status model.CartStatus) error

	// Touch updates the cart's last-activity timestamp.
	Touch(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, at time.Time) error

	// ListStale returns unpaid/pending carts whose last activity predates cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]model.Cart, error)

	// GetItem retrieves a cart item by id scoped to the cart, or nil.
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*model.CartItem, error)

	// GetItemByProduct retrieves the (cart, product) row with a lock, or nil.
	GetItemByProduct(ctx context.Context, tx pgx.Tx, cartID, productID uuid.UUID) (*model.CartItem, error)

	// InsertItem inserts a new cart item.
	InsertItem(ctx context.Context, tx pgx.Tx, item *model.CartItem) error

	// UpdateItemQuantity sets a cart item's quantity.
	UpdateItemQuantity(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, quantity int) error

	// DeleteItem removes a cart item.
	DeleteItem(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error

	// ListItemViews returns the cart's items joined with live product pricing.
	ListItemViews(ctx context.Context, cartID uuid.UUID) ([]model.CartItemView, error)

	// ListItemsForUpdate row-locks and returns the cart's items in stable
	// product order, so the create and cancel paths acquire product locks
	// in the same sequence.
	ListItemsForUpdate(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]model.CartItem, error)
}

// CheckoutRepository defines data access for checkout drafts.
type CheckoutRepository interface {
	// GetByCartID retrieves the cart's checkout draft, or nil.
	GetByCartID(ctx context.Context, cartID uuid.UUID) (*model.Checkout, error)

	// GetByCartIDTx retrieves the draft inside the transaction, or nil.
	GetByCartIDTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (*model.Checkout, error)

	// Create inserts an empty draft for the cart.
	Create(ctx context.Context, checkout *model.Checkout) error

	// Update persists the draft's mutable fields.
	Update(ctx context.Context, checkout *model.Checkout) error

	// ListStalePendingCartIDs returns ids of pending carts whose checkout
	// draft was created before cutoff.
	ListStalePendingCartIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// OrderRepository defines data access for orders and their item snapshots.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// GetByID retrieves an order with its item snapshots, or nil.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)

	// GetForUpdate retrieves an order inside the transaction with a row lock.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// GetByCartID retrieves the order bound to the cart inside the
	// transaction, or nil. Backs the create-order idempotency check.
	GetByCartID(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (*model.Order, error)

	// Create inserts a new order within the transaction.
	Create(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateItems bulk-inserts the order's item snapshots.
	CreateItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// ListItems returns the order's item snapshots.
	ListItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error)

	// ListItemsForUpdate row-locks and returns the order's item snapshots
	// in stable product order.
	ListItemsForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error)

	// UpdateStatus sets the order status within the transaction.
	UpdateStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus) error

	// ListAwaitingPaymentBefore returns awaiting-payment orders created
	// before cutoff.
	ListAwaitingPaymentBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error)

	// ListForPaymentReminder returns awaiting-payment orders created before
	// cutoff that have not received the first reminder.
	ListForPaymentReminder(ctx context.Context, cutoff time.Time) ([]model.Order, error)

	// ListForFinalReminder returns awaiting-payment orders created inside
	// [start, end] that have not received the final reminder.
	ListForFinalReminder(ctx context.Context, start, end time.Time) ([]model.Order, error)

	// MarkPaymentReminderSent flags the first reminder as delivered.
	MarkPaymentReminderSent(ctx context.Context, orderID uuid.UUID) error

	// MarkFinalReminderSent flags the final reminder as delivered.
	MarkFinalReminderSent(ctx context.Context, orderID uuid.UUID) error
}

// PaymentRepository defines data access for payments.
type PaymentRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// GetByOrderID retrieves the order's newest non-failed payment, or nil.
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error)

	// GetByReferenceForUpdate row-locks and retrieves the payment with the
	// given reference inside the transaction, or nil.
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*model.Payment, error)

	// Create inserts a new payment.
	Create(ctx context.Context, payment *model.Payment) error

	// UpdateStatus sets the payment status within the transaction.
	UpdateStatus(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, status model.PaymentStatus) error

	// SetPaymentAlert records that the settlement notification went out.
	SetPaymentAlert(ctx context.Context, paymentID uuid.UUID) error

	// ListPaidWithoutAlert returns paid payments whose settlement
	// notification has not been delivered yet.
	ListPaidWithoutAlert(ctx context.Context) ([]model.Payment, error)
}

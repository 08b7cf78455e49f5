package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const orderColumns = `
	id, customer_id, cart_id, status, shipping_address, billing_address,
	payment_method, payment_reminder_sent, final_payment_reminder_sent, created_at
`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.CartID,
		&o.Status,
		&o.ShippingAddress,
		&o.BillingAddress,
		&o.PaymentMethod,
		&o.PaymentReminderSent,
		&o.FinalPaymentReminderSent,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID retrieves an order by its ID along with its item snapshots.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, nil, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.ListItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return o, items, nil
}

// GetForUpdate retrieves an order with a row lock inside the transaction.
func (r *orderRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	o, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to lock order")
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	return o, nil
}

// GetByCartID retrieves the order bound to the cart inside the transaction.
func (r *orderRepository) GetByCartID(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE cart_id = $1`

	o, err := scanOrder(tx.QueryRow(ctx, query, cartID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query order by cart")
		return nil, fmt.Errorf("failed to query order by cart: %w", err)
	}

	return o, nil
}

// Create inserts a new order within the provided transaction.
func (r *orderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (
			id, customer_id, cart_id, status, shipping_address, billing_address,
			payment_method, payment_reminder_sent, final_payment_reminder_sent, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := tx.Exec(ctx, query,
		order.ID,
		order.CustomerID,
		order.CartID,
		order.Status,
		order.ShippingAddress,
		order.BillingAddress,
		order.PaymentMethod,
		order.PaymentReminderSent,
		order.FinalPaymentReminderSent,
		order.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().Str("order_id", order.ID.String()).Msg("order created")

	return nil
}

// CreateItems inserts multiple order item snapshots within the provided transaction.
func (r *orderRepository) CreateItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, discount_percent, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, item.ID, item.OrderID, item.ProductID, item.ProductName, item.UnitPrice, item.DiscountPercent, item.Quantity)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID.String()).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().Int("count", len(items)).Msg("order items created")

	return nil
}

const orderItemColumns = `id, order_id, product_id, product_name, unit_price, discount_percent, quantity`

func (r *orderRepository) scanOrderItems(rows pgx.Rows) ([]model.OrderItem, error) {
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.UnitPrice, &item.DiscountPercent, &item.Quantity)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// ListItems returns the order's item snapshots.
func (r *orderRepository) ListItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY product_id`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}

	return r.scanOrderItems(rows)
}

// ListItemsForUpdate row-locks the order's item snapshots in stable product order.
func (r *orderRepository) ListItemsForUpdate(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY product_id FOR UPDATE`

	rows, err := tx.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to lock order items")
		return nil, fmt.Errorf("failed to lock order items: %w", err)
	}

	return r.scanOrderItems(rows)
}

// UpdateStatus sets the order status within the transaction.
func (r *orderRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus) error {
	query := `UPDATE orders SET status = $2 WHERE id = $1`

	if _, err := tx.Exec(ctx, query, orderID, status); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Str("status", string(status)).Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return nil
}

func (r *orderRepository) listOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		err := rows.Scan(
			&o.ID, &o.CustomerID, &o.CartID, &o.Status,
			&o.ShippingAddress, &o.BillingAddress, &o.PaymentMethod,
			&o.PaymentReminderSent, &o.FinalPaymentReminderSent, &o.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// ListAwaitingPaymentBefore returns awaiting-payment orders created before cutoff.
func (r *orderRepository) ListAwaitingPaymentBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'awaiting_payment' AND created_at < $1
		ORDER BY created_at
	`
	return r.listOrders(ctx, query, cutoff)
}

// ListForPaymentReminder returns awaiting-payment orders eligible for the
// first reminder.
func (r *orderRepository) ListForPaymentReminder(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'awaiting_payment'
			AND created_at <= $1
			AND payment_reminder_sent = FALSE
		ORDER BY created_at
	`
	return r.listOrders(ctx, query, cutoff)
}

// ListForFinalReminder returns awaiting-payment orders inside the final
// reminder window that have not received it.
func (r *orderRepository) ListForFinalReminder(ctx context.Context, start, end time.Time) ([]model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'awaiting_payment'
			AND created_at >= $1
			AND created_at <= $2
			AND final_payment_reminder_sent = FALSE
		ORDER BY created_at
	`
	return r.listOrders(ctx, query, start, end)
}

// MarkPaymentReminderSent flags the first reminder as delivered.
func (r *orderRepository) MarkPaymentReminderSent(ctx context.Context, orderID uuid.UUID) error {
	query := `UPDATE orders SET payment_reminder_sent = TRUE WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, orderID); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark payment reminder sent")
		return fmt.Errorf("failed to mark payment reminder sent: %w", err)
	}
	return nil
}

// MarkFinalReminderSent flags the final reminder as delivered.
func (r *orderRepository) MarkFinalReminderSent(ctx context.Context, orderID uuid.UUID) error {
	query := `UPDATE orders SET final_payment_reminder_sent = TRUE WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, orderID); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to mark final reminder sent")
		return fmt.Errorf("failed to mark final reminder sent: %w", err)
	}
	return nil
}

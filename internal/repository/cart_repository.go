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

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *cartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const cartColumns = `id, customer_id, status, created_at, last_activity_at`

func scanCart(row pgx.Row) (*model.Cart, error) {
	var c model.Cart
	err := row.Scan(&c.ID, &c.CustomerID, &c.Status, &c.CreatedAt, &c.LastActivityAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID retrieves a cart by its ID.
func (r *cartRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`

	c, err := scanCart(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("cart_id", id.String()).Msg("cart not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	return c, nil
}

// GetForUpdate retrieves a cart with a row lock inside the transaction.
func (r *cartRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1 FOR UPDATE`

	c, err := scanCart(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", id.String()).Msg("failed to lock cart")
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}

	return c, nil
}

// FindLiveByCustomer returns the customer's most recently active unpaid or
// pending cart inside the sliding TTL window, row-locked.
func (r *cartRepository) FindLiveByCustomer(ctx context.Context, tx pgx.Tx, customerID uuid.UUID, cutoff time.Time) (*model.Cart, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE customer_id = $1
			AND status IN ('unpaid', 'pending')
			AND last_activity_at >= $2
		ORDER BY last_activity_at DESC
		LIMIT 1
		FOR UPDATE
	`

	c, err := scanCart(tx.QueryRow(ctx, query, customerID, cutoff))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("customer_id", customerID.String()).Msg("failed to query live cart")
		return nil, fmt.Errorf("failed to query live cart: %w", err)
	}

	return c, nil
}

// FindUnpaidByCustomer returns the customer's unpaid cart no matter how old,
// row-locked. The partial unique index guarantees at most one row.
func (r *cartRepository) FindUnpaidByCustomer(ctx context.Context, tx pgx.Tx, customerID uuid.UUID) (*model.Cart, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE customer_id = $1 AND status = 'unpaid'
		FOR UPDATE
	`

	c, err := scanCart(tx.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("customer_id", customerID.String()).Msg("failed to query unpaid cart")
		return nil, fmt.Errorf("failed to query unpaid cart: %w", err)
	}

	return c, nil
}

// Create inserts a new cart within the provided transaction.
func (r *cartRepository) Create(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	query := `
		INSERT INTO carts (id, customer_id, status, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.Exec(ctx, query, cart.ID, cart.CustomerID, cart.Status, cart.CreatedAt, cart.LastActivityAt)
	if err != nil {
		r.logger.Debug().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to create cart")
		return fmt.Errorf("failed to create cart: %w", err)
	}

	return nil
}

// UpdateStatus sets the cart status within the transaction.
func (r *cartRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, status model.CartStatus) error {
	query := `UPDATE carts SET status = $2 WHERE id = $1`

	if _, err := tx.Exec(ctx, query, cartID, status); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Str("status", string(status)).Msg("failed to update cart status")
		return fmt.Errorf("failed to update cart status: %w", err)
	}

	return nil
}

// ForceStatus sets the cart status directly against the pool. Cart recovery
// uses this after the order-creation transaction has already rolled back.
func (r *cartRepository) ForceStatus(ctx context.Context, cartID uuid.UUID, status model.CartStatus) error {
	query := `UPDATE carts SET status = $2 WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, cartID, status); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Str("status", string(status)).Msg("failed to force cart status")
		return fmt.Errorf("failed to force cart status: %w", err)
	}

	return nil
}

// Touch updates the cart's last-activity timestamp.
func (r *cartRepository) Touch(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, at time.Time) error {
	query := `UPDATE carts SET last_activity_at = $2 WHERE id = $1`

	if _, err := tx.Exec(ctx, query, cartID, at); err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to touch cart")
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	return nil
}

// ListStale returns unpaid/pending carts whose last activity predates cutoff.
func (r *cartRepository) ListStale(ctx context.Context, cutoff time.Time) ([]model.Cart, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE status IN ('unpaid', 'pending')
			AND last_activity_at < $1
		ORDER BY last_activity_at
	`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query stale carts")
		return nil, fmt.Errorf("failed to query stale carts: %w", err)
	}
	defer rows.Close()

	var carts []model.Cart
	for rows.Next() {
		var c model.Cart
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.Status, &c.CreatedAt, &c.LastActivityAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart row")
			return nil, fmt.Errorf("failed to scan cart: %w", err)
		}
		carts = append(carts, c)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart rows")
		return nil, fmt.Errorf("error iterating carts: %w", err)
	}

	return carts, nil
}

// GetItem retrieves a cart item by id, scoped to the cart.
func (r *cartRepository) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*model.CartItem, error) {
	query := `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items
		WHERE id = $1 AND cart_id = $2
	`

	var item model.CartItem
	err := r.pool.QueryRow(ctx, query, itemID, cartID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to query cart item")
		return nil, fmt.Errorf("failed to query cart item: %w", err)
	}

	return &item, nil
}

// GetItemByProduct retrieves the (cart, product) row with a lock.
func (r *cartRepository) GetItemByProduct(ctx context.Context, tx pgx.Tx, cartID, productID uuid.UUID) (*model.CartItem, error) {
	query := `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		FOR UPDATE
	`

	var item model.CartItem
	err := tx.QueryRow(ctx, query, cartID, productID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Str("product_id", productID.String()).Msg("failed to query cart item by product")
		return nil, fmt.Errorf("failed to query cart item by product: %w", err)
	}

	return &item, nil
}

// InsertItem inserts a new cart item within the transaction.
func (r *cartRepository) InsertItem(ctx context.Context, tx pgx.Tx, item *model.CartItem) error {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := tx.Exec(ctx, query, item.ID, item.CartID, item.ProductID, item.Quantity); err != nil {
		r.logger.Error().Err(err).Str("cart_id", item.CartID.String()).Msg("failed to insert cart item")
		return fmt.Errorf("failed to insert cart item: %w", err)
	}

	return nil
}

// UpdateItemQuantity sets a cart item's quantity.
func (r *cartRepository) UpdateItemQuantity(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, quantity int) error {
	query := `UPDATE cart_items SET quantity = $2 WHERE id = $1`

	if _, err := tx.Exec(ctx, query, itemID, quantity); err != nil {
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to update cart item quantity")
		return fmt.Errorf("failed to update cart item quantity: %w", err)
	}

	return nil
}

// DeleteItem removes a cart item.
func (r *cartRepository) DeleteItem(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE id = $1`

	if _, err := tx.Exec(ctx, query, itemID); err != nil {
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to delete cart item")
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return nil
}

// ListItemViews returns the cart's items joined with live product pricing.
func (r *cartRepository) ListItemViews(ctx context.Context, cartID uuid.UUID) ([]model.CartItemView, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
			p.name, p.price, p.discount_percent
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
	`

	rows, err := r.pool.Query(ctx, query, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query cart items")
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var views []model.CartItemView
	for rows.Next() {
		var v model.CartItemView
		err := rows.Scan(
			&v.ID, &v.CartID, &v.ProductID, &v.Quantity,
			&v.ProductName, &v.UnitPrice, &v.DiscountPercent,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart item row")
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart item rows")
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return views, nil
}

// ListItemsForUpdate row-locks the cart's items in stable product order.
func (r *cartRepository) ListItemsForUpdate(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]model.CartItem, error) {
	query := `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY product_id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to lock cart items")
		return nil, fmt.Errorf("failed to lock cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart item row")
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart item rows")
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

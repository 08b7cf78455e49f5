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

// checkoutRepository implements the CheckoutRepository interface using PostgreSQL.
type checkoutRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCheckoutRepository creates a new PostgreSQL-backed checkout repository.
func NewCheckoutRepository(pool *pgxpool.Pool, logger zerolog.Logger) CheckoutRepository {
	return &checkoutRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "checkout").Logger(),
	}
}

const checkoutColumns = `
	id, cart_id, shipping_address, billing_address, payment_method,
	created_at, updated_at
`

func scanCheckout(row pgx.Row) (*model.Checkout, error) {
	var c model.Checkout
	err := row.Scan(
		&c.ID,
		&c.CartID,
		&c.ShippingAddress,
		&c.BillingAddress,
		&c.PaymentMethod,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCartID retrieves the cart's checkout draft.
func (r *checkoutRepository) GetByCartID(ctx context.Context, cartID uuid.UUID) (*model.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE cart_id = $1`

	c, err := scanCheckout(r.pool.QueryRow(ctx, query, cartID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("cart_id", cartID.String()).Msg("checkout not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query checkout")
		return nil, fmt.Errorf("failed to query checkout: %w", err)
	}

	return c, nil
}

// GetByCartIDTx retrieves the draft inside the transaction.
func (r *checkoutRepository) GetByCartIDTx(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (*model.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE cart_id = $1`

	c, err := scanCheckout(tx.QueryRow(ctx, query, cartID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to query checkout")
		return nil, fmt.Errorf("failed to query checkout: %w", err)
	}

	return c, nil
}

// Create inserts an empty draft for the cart.
func (r *checkoutRepository) Create(ctx context.Context, checkout *model.Checkout) error {
	query := `
		INSERT INTO checkouts (id, cart_id, shipping_address, billing_address, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		checkout.ID,
		checkout.CartID,
		checkout.ShippingAddress,
		checkout.BillingAddress,
		checkout.PaymentMethod,
		checkout.CreatedAt,
		checkout.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", checkout.CartID.String()).Msg("failed to create checkout")
		return fmt.Errorf("failed to create checkout: %w", err)
	}

	return nil
}

// Update persists the draft's mutable fields.
func (r *checkoutRepository) Update(ctx context.Context, checkout *model.Checkout) error {
	query := `
		UPDATE checkouts
		SET shipping_address = $2, billing_address = $3, payment_method = $4, updated_at = $5
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query,
		checkout.ID,
		checkout.ShippingAddress,
		checkout.BillingAddress,
		checkout.PaymentMethod,
		checkout.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("checkout_id", checkout.ID.String()).Msg("failed to update checkout")
		return fmt.Errorf("failed to update checkout: %w", err)
	}

	return nil
}

// ListStalePendingCartIDs returns ids of pending carts whose checkout draft
// was created before cutoff.
func (r *checkoutRepository) ListStalePendingCartIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT c.id
		FROM carts c
		JOIN checkouts ch ON ch.cart_id = c.id
		WHERE c.status = 'pending'
			AND ch.created_at < $1
		ORDER BY ch.created_at
	`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query stale pending carts")
		return nil, fmt.Errorf("failed to query stale pending carts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart id")
			return nil, fmt.Errorf("failed to scan cart id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart ids")
		return nil, fmt.Errorf("error iterating cart ids: %w", err)
	}

	return ids, nil
}

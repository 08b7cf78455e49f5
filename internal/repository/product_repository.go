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

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

const productColumns = `
	id, vendor_id, name, price, discount_percent, stock, initial_stock,
	low_stock_threshold, low_stock_alert_sent, critical_stock_alert_sent,
	last_activity_at, created_at
`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID,
		&p.VendorID,
		&p.Name,
		&p.Price,
		&p.DiscountPercent,
		&p.Stock,
		&p.InitialStock,
		&p.LowStockThreshold,
		&p.LowStockAlertSent,
		&p.CriticalStockAlertSent,
		&p.LastActivityAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id.String()).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return p, nil
}

// List retrieves all products ordered by name.
func (r *productRepository) List(ctx context.Context) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query products")
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		err := rows.Scan(
			&p.ID,
			&p.VendorID,
			&p.Name,
			&p.Price,
			&p.DiscountPercent,
			&p.Stock,
			&p.InitialStock,
			&p.LowStockThreshold,
			&p.LowStockAlertSent,
			&p.CriticalStockAlertSent,
			&p.LastActivityAt,
			&p.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// GetForUpdate retrieves a product with a row lock inside the transaction.
func (r *productRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	p, err := scanProduct(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to lock product")
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return p, nil
}

// ApplyStockChange is the single update path for product stock. The caller
// must hold the row lock from GetForUpdate. Alert flags reset when stock
// recovers above the threshold, and the initial-stock baseline rises on
// restock beyond it.
func (r *productRepository) ApplyStockChange(ctx context.Context, tx pgx.Tx, product *model.Product, newStock int) (bool, error) {
	if newStock < 0 {
		return false, fmt.Errorf("stock cannot go negative for product %s", product.ID)
	}

	lowCrossed := !product.BelowThreshold(product.Stock) &&
		product.BelowThreshold(newStock) &&
		!product.LowStockAlertSent

	lowAlertSent := product.LowStockAlertSent
	criticalAlertSent := product.CriticalStockAlertSent
	if lowCrossed {
		lowAlertSent = true
	}
	if !product.BelowThreshold(newStock) {
		// Recovered above threshold: re-arm both alerts.
		lowAlertSent = false
		criticalAlertSent = false
	}

	initialStock := product.InitialStock
	if newStock > initialStock {
		initialStock = newStock
	}

	query := `
		UPDATE products
		SET stock = $2,
			initial_stock = $3,
			low_stock_alert_sent = $4,
			critical_stock_alert_sent = $5,
			last_activity_at = $6
		WHERE id = $1
	`

	now := time.Now()
	if _, err := tx.Exec(ctx, query, product.ID, newStock, initialStock, lowAlertSent, criticalAlertSent, now); err != nil {
		r.logger.Error().
			Err(err).
			Str("product_id", product.ID.String()).
			Int("new_stock", newStock).
			Msg("failed to update stock")
		return false, fmt.Errorf("failed to update stock: %w", err)
	}

	product.Stock = newStock
	product.InitialStock = initialStock
	product.LowStockAlertSent = lowAlertSent
	product.CriticalStockAlertSent = criticalAlertSent
	product.LastActivityAt = &now

	r.logger.Debug().
		Str("product_id", product.ID.String()).
		Int("stock", newStock).
		Bool("low_stock_crossed", lowCrossed).
		Msg("stock updated")

	return lowCrossed, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"shop-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// paymentRepository implements the PaymentRepository interface using PostgreSQL.
type paymentRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentRepository creates a new PostgreSQL-backed payment repository.
func NewPaymentRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentRepository {
	return &paymentRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *paymentRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const paymentColumns = `id, order_id, amount, provider, reference, status, payment_alert, created_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Provider,
		&p.Reference,
		&p.Status,
		&p.PaymentAlert,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByOrderID retrieves the order's newest non-failed payment.
func (r *paymentRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = $1 AND status <> 'failed'
		ORDER BY created_at DESC
		LIMIT 1
	`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query payment")
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	return p, nil
}

// GetByReferenceForUpdate row-locks the payment with the given reference.
func (r *paymentRepository) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1 FOR UPDATE`

	p, err := scanPayment(tx.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to lock payment by reference")
		return nil, fmt.Errorf("failed to lock payment by reference: %w", err)
	}

	return p, nil
}

// Create inserts a new payment.
func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, amount, provider, reference, status, payment_alert, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.Amount,
		payment.Provider,
		payment.Reference,
		payment.Status,
		payment.PaymentAlert,
		payment.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", payment.OrderID.String()).Msg("failed to create payment")
		return fmt.Errorf("failed to create payment: %w", err)
	}

	r.logger.Debug().
		Str("payment_id", payment.ID.String()).
		Str("order_id", payment.OrderID.String()).
		Msg("payment created")

	return nil
}

// UpdateStatus sets the payment status within the transaction.
func (r *paymentRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, status model.PaymentStatus) error {
	query := `UPDATE payments SET status = $2 WHERE id = $1`

	if _, err := tx.Exec(ctx, query, paymentID, status); err != nil {
		r.logger.Error().Err(err).Str("payment_id", paymentID.String()).Str("status", string(status)).Msg("failed to update payment status")
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	return nil
}

// SetPaymentAlert records that the settlement notification went out.
func (r *paymentRepository) SetPaymentAlert(ctx context.Context, paymentID uuid.UUID) error {
	query := `UPDATE payments SET payment_alert = TRUE WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, paymentID); err != nil {
		r.logger.Error().Err(err).Str("payment_id", paymentID.String()).Msg("failed to set payment alert")
		return fmt.Errorf("failed to set payment alert: %w", err)
	}

	return nil
}

// ListPaidWithoutAlert returns paid payments whose settlement notification
// has not been delivered yet.
func (r *paymentRepository) ListPaidWithoutAlert(ctx context.Context) ([]model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'paid' AND payment_alert = FALSE
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query payments without alert")
		return nil, fmt.Errorf("failed to query payments without alert: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Provider, &p.Reference, &p.Status, &p.PaymentAlert, &p.CreatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan payment row")
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating payment rows")
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

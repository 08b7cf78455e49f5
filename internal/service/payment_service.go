package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-core/internal/model"
	"shop-core/internal/notify"
	"shop-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// paymentService implements PaymentService.
type paymentService struct {
	paymentRepo     repository.PaymentRepository
	orderRepo       repository.OrderRepository
	orderService    OrderService
	notifier        notify.Notifier
	defaultProvider string
	logger          zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	orderService OrderService,
	notifier notify.Notifier,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo:     paymentRepo,
		orderRepo:       orderRepo,
		orderService:    orderService,
		notifier:        notifier,
		defaultProvider: "internal",
		logger:          logger.With().Str("service", "payment").Logger(),
	}
}

// newPaymentReference produces the opaque token handed to the provider.
func newPaymentReference() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Initiate creates a pending payment for a created or awaiting-payment
// order. The amount is computed from the order's item snapshots, never taken
// from the request. Idempotent: an existing pending or paid payment is
// returned, including when two initiates race on the live-payment index.
func (s *paymentService) Initiate(ctx context.Context, req *model.InitiatePaymentRequest) (*model.Payment, error) {
	order, items, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.NewNotFoundError("order")
	}

	existing, err := s.paymentRepo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if order.Status != model.OrderStatusAwaitingPayment && order.Status != model.OrderStatusCreated {
		return nil, model.NewStateConflictError(model.ErrCodeOrderNotPayable,
			fmt.Sprintf("order in status %q cannot accept payment", order.Status))
	}

	provider := req.Provider
	if provider == "" {
		provider = s.defaultProvider
	}

	payment := &model.Payment{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Amount:    model.OrderTotal(items),
		Provider:  provider,
		Reference: newPaymentReference(),
		Status:    model.PaymentStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if isUniqueViolation(err) {
			// Lost a concurrent initiate; the winner's live payment is
			// the one to hand back.
			winner, readErr := s.paymentRepo.GetByOrderID(ctx, order.ID)
			if readErr == nil && winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	s.logger.Info().
		Str("payment_id", payment.ID.String()).
		Str("order_id", order.ID.String()).
		Float64("amount", payment.Amount).
		Str("provider", provider).
		Msg("payment initiated")

	return payment, nil
}

// Confirm settles the payment identified by reference and moves the order
// and its cart to paid, all in one transaction. A receipt notification goes
// out after commit; if it fails, the payment_alert flag stays unset and the
// sweeper retries delivery later.
func (s *paymentService) Confirm(ctx context.Context, reference string) (*model.Payment, error) {
	if reference == "" {
		return nil, &model.NotFoundError{Code: model.ErrCodeInvalidReference, Message: "payment reference is required"}
	}

	tx, err := s.paymentRepo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	payment, err := s.paymentRepo.GetByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		err = &model.NotFoundError{Code: model.ErrCodeInvalidReference, Message: "no payment matches this reference"}
		return nil, err
	}

	if payment.Status == model.PaymentStatusPaid {
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return payment, nil
	}
	if payment.Status == model.PaymentStatusFailed {
		err = model.NewStateConflictError(model.ErrCodePaymentFailed, "this payment has failed and cannot be confirmed")
		return nil, err
	}

	if err = s.paymentRepo.UpdateStatus(ctx, tx, payment.ID, model.PaymentStatusPaid); err != nil {
		return nil, err
	}
	payment.Status = model.PaymentStatusPaid

	if err = s.orderService.MarkOrderPaid(ctx, tx, payment.OrderID); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("payment_id", payment.ID.String()).
		Str("order_id", payment.OrderID.String()).
		Msg("payment confirmed")

	s.sendReceipt(ctx, payment)

	return payment, nil
}

// sendReceipt dispatches the settlement receipt and records delivery via the
// payment_alert flag. Best effort; an undelivered receipt is picked up by
// the payment-alert sweep.
func (s *paymentService) sendReceipt(ctx context.Context, payment *model.Payment) {
	order, _, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil || order == nil {
		s.logger.Warn().Err(err).Str("order_id", payment.OrderID.String()).Msg("failed to load order for receipt")
		return
	}
	if order.CustomerID == nil {
		return
	}

	body := fmt.Sprintf("Payment of %.2f for order %s was received.", payment.Amount, order.ID)
	if err := s.notifier.Send(ctx, "Payment received", body, order.CustomerID.String()); err != nil {
		s.logger.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("failed to send payment receipt")
		return
	}

	if err := s.paymentRepo.SetPaymentAlert(ctx, payment.ID); err != nil {
		s.logger.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("failed to record payment alert")
	}
	payment.PaymentAlert = true
}

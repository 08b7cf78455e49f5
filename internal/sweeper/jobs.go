package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-core/internal/model"
	"shop-core/internal/notify"
	"shop-core/internal/repository"
	"shop-core/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// cartSweepJob expires unpaid carts whose last activity predates the cart
// TTL. Pending carts are left to the checkout and order sweeps, which know
// whether an order is holding stock for them.
type cartSweepJob struct {
	cartRepo    repository.CartRepository
	cartService service.CartService
	ttl         time.Duration
}

// NewCartSweepJob creates the stale-cart expiration job.
func NewCartSweepJob(cartRepo repository.CartRepository, cartService service.CartService, ttl time.Duration) Job {
	return &cartSweepJob{cartRepo: cartRepo, cartService: cartService, ttl: ttl}
}

func (j *cartSweepJob) Name() string { return "cart-sweep" }

func (j *cartSweepJob) Run(ctx context.Context) (int, error) {
	stale, err := j.cartRepo.ListStale(ctx, time.Now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		if stale[i].Status != model.CartStatusUnpaid {
			continue
		}
		if err := j.cartService.ExpireCart(ctx, stale[i].ID, "cart ttl exceeded"); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// checkoutSweepJob releases pending carts whose checkout has gone stale
// without producing an order, reverting them to unpaid so the customer can
// resume editing. A cart superseded by a newer unpaid cart is expired
// instead. Carts that already have an order keep their pending state; the
// order cancellation sweep owns those.
type checkoutSweepJob struct {
	cartRepo     repository.CartRepository
	checkoutRepo repository.CheckoutRepository
	orderRepo    repository.OrderRepository
	ttl          time.Duration
	logger       zerolog.Logger
}

// NewCheckoutSweepJob creates the abandoned-checkout release job.
func NewCheckoutSweepJob(
	cartRepo repository.CartRepository,
	checkoutRepo repository.CheckoutRepository,
	orderRepo repository.OrderRepository,
	ttl time.Duration,
	logger zerolog.Logger,
) Job {
	return &checkoutSweepJob{
		cartRepo:     cartRepo,
		checkoutRepo: checkoutRepo,
		orderRepo:    orderRepo,
		ttl:          ttl,
		logger:       logger.With().Str("job", "checkout-sweep").Logger(),
	}
}

func (j *checkoutSweepJob) Name() string { return "checkout-sweep" }

func (j *checkoutSweepJob) Run(ctx context.Context) (int, error) {
	cartIDs, err := j.checkoutRepo.ListStalePendingCartIDs(ctx, time.Now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}

	released := 0
	for _, cartID := range cartIDs {
		ok, err := j.releaseCart(ctx, cartID)
		if err != nil {
			// One stuck cart must not starve the rest of the list.
			j.logger.Warn().Err(err).Str("cart_id", cartID.String()).Msg("failed to release stale checkout")
			continue
		}
		if ok {
			released++
		}
	}
	return released, nil
}

func (j *checkoutSweepJob) releaseCart(ctx context.Context, cartID uuid.UUID) (ok bool, err error) {
	tx, err := j.cartRepo.BeginTx(ctx)
	if err != nil {
		return false, err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				j.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	cart, err := j.cartRepo.GetForUpdate(ctx, tx, cartID)
	if err != nil {
		return false, err
	}
	if cart == nil || cart.Status != model.CartStatusPending {
		return false, tx.Commit(ctx)
	}

	order, err := j.orderRepo.GetByCartID(ctx, tx, cartID)
	if err != nil {
		return false, err
	}
	if order != nil {
		// Stock is reserved for this cart; leave it pending.
		return false, tx.Commit(ctx)
	}

	// Reverting to unpaid would collide with the partial unique index when
	// the customer has already started a newer unpaid cart; expire instead.
	status := model.CartStatusUnpaid
	if cart.CustomerID != nil {
		var unpaid *model.Cart
		unpaid, err = j.cartRepo.FindUnpaidByCustomer(ctx, tx, *cart.CustomerID)
		if err != nil {
			return false, err
		}
		if unpaid != nil {
			status = model.CartStatusExpired
		}
	}

	if err = j.cartRepo.UpdateStatus(ctx, tx, cartID, status); err != nil {
		return false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	j.logger.Info().
		Str("cart_id", cartID.String()).
		Str("status", string(status)).
		Msg("stale checkout swept")
	return true, nil
}

// orderCancelJob cancels awaiting-payment orders older than the payment TTL,
// restoring their reserved stock.
type orderCancelJob struct {
	orderRepo    repository.OrderRepository
	orderService service.OrderService
	ttl          time.Duration
}

// NewOrderCancelJob creates the unpaid-order cancellation job.
func NewOrderCancelJob(orderRepo repository.OrderRepository, orderService service.OrderService, ttl time.Duration) Job {
	return &orderCancelJob{orderRepo: orderRepo, orderService: orderService, ttl: ttl}
}

func (j *orderCancelJob) Name() string { return "order-cancel" }

func (j *orderCancelJob) Run(ctx context.Context) (int, error) {
	orders, err := j.orderRepo.ListAwaitingPaymentBefore(ctx, time.Now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for i := range orders {
		if _, err := j.orderService.Cancel(ctx, orders[i].ID, "payment window elapsed"); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	return cancelled, nil
}

// paymentReminderJob sends the first payment reminder for orders that have
// been awaiting payment past the reminder threshold. The sent-flag makes
// delivery at-most-once across sweeps.
type paymentReminderJob struct {
	orderRepo repository.OrderRepository
	notifier  notify.Notifier
	after     time.Duration
	logger    zerolog.Logger
}

// NewPaymentReminderJob creates the first payment reminder job.
func NewPaymentReminderJob(orderRepo repository.OrderRepository, notifier notify.Notifier, after time.Duration, logger zerolog.Logger) Job {
	return &paymentReminderJob{
		orderRepo: orderRepo,
		notifier:  notifier,
		after:     after,
		logger:    logger.With().Str("job", "payment-reminder").Logger(),
	}
}

func (j *paymentReminderJob) Name() string { return "payment-reminder" }

func (j *paymentReminderJob) Run(ctx context.Context) (int, error) {
	orders, err := j.orderRepo.ListForPaymentReminder(ctx, time.Now().Add(-j.after))
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range orders {
		order := &orders[i]
		if order.CustomerID == nil {
			continue
		}

		body := fmt.Sprintf("Order %s is still awaiting payment. Please complete your payment to keep your items reserved.", order.ID)
		if err := j.notifier.Send(ctx, "Payment reminder", body, order.CustomerID.String()); err != nil {
			j.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to send payment reminder")
			continue
		}
		if err := j.orderRepo.MarkPaymentReminderSent(ctx, order.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// finalReminderJob sends the last-call reminder to orders deep inside the
// payment window, shortly before the cancellation sweep would claim them.
type finalReminderJob struct {
	orderRepo   repository.OrderRepository
	notifier    notify.Notifier
	windowStart time.Duration
	windowEnd   time.Duration
	logger      zerolog.Logger
}

// NewFinalReminderJob creates the final payment reminder job.
func NewFinalReminderJob(orderRepo repository.OrderRepository, notifier notify.Notifier, windowStart, windowEnd time.Duration, logger zerolog.Logger) Job {
	return &finalReminderJob{
		orderRepo:   orderRepo,
		notifier:    notifier,
		windowStart: windowStart,
		windowEnd:   windowEnd,
		logger:      logger.With().Str("job", "final-payment-reminder").Logger(),
	}
}

func (j *finalReminderJob) Name() string { return "final-payment-reminder" }

func (j *finalReminderJob) Run(ctx context.Context) (int, error) {
	now := time.Now()
	orders, err := j.orderRepo.ListForFinalReminder(ctx, now.Add(-j.windowEnd), now.Add(-j.windowStart))
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range orders {
		order := &orders[i]
		if order.CustomerID == nil {
			continue
		}

		body := fmt.Sprintf("Final reminder: order %s will be cancelled and its items released unless payment is completed soon.", order.ID)
		if err := j.notifier.Send(ctx, "Final payment reminder", body, order.CustomerID.String()); err != nil {
			j.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to send final payment reminder")
			continue
		}
		if err := j.orderRepo.MarkFinalReminderSent(ctx, order.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// paymentAlertJob redelivers settlement receipts whose after-commit dispatch
// failed, then sets the payment_alert flag.
type paymentAlertJob struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	notifier    notify.Notifier
	logger      zerolog.Logger
}

// NewPaymentAlertJob creates the receipt redelivery job.
func NewPaymentAlertJob(paymentRepo repository.PaymentRepository, orderRepo repository.OrderRepository, notifier notify.Notifier, logger zerolog.Logger) Job {
	return &paymentAlertJob{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		notifier:    notifier,
		logger:      logger.With().Str("job", "payment-alert").Logger(),
	}
}

func (j *paymentAlertJob) Name() string { return "payment-alert" }

func (j *paymentAlertJob) Run(ctx context.Context) (int, error) {
	payments, err := j.paymentRepo.ListPaidWithoutAlert(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range payments {
		payment := &payments[i]

		order, _, err := j.orderRepo.GetByID(ctx, payment.OrderID)
		if err != nil {
			return sent, err
		}
		if order == nil || order.CustomerID == nil {
			continue
		}

		body := fmt.Sprintf("Payment of %.2f for order %s was received.", payment.Amount, order.ID)
		if err := j.notifier.Send(ctx, "Payment received", body, order.CustomerID.String()); err != nil {
			j.logger.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("failed to redeliver payment receipt")
			continue
		}
		if err := j.paymentRepo.SetPaymentAlert(ctx, payment.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

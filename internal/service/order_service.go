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

// orderService implements OrderService.
type orderService struct {
	orderRepo    repository.OrderRepository
	cartRepo     repository.CartRepository
	checkoutRepo repository.CheckoutRepository
	productRepo  repository.ProductRepository
	notifier     notify.Notifier
	logger       zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	checkoutRepo repository.CheckoutRepository,
	productRepo repository.ProductRepository,
	notifier notify.Notifier,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		cartRepo:     cartRepo,
		checkoutRepo: checkoutRepo,
		productRepo:  productRepo,
		notifier:     notifier,
		logger:       logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrderWithCartRecovery creates the order and, when creation fails on a
// user-correctable validation error, reverts the cart to unpaid so the
// customer can fix the cart and confirm again. The original error is returned
// either way.
func (s *orderService) CreateOrderWithCartRecovery(ctx context.Context, cartID uuid.UUID) (*model.OrderResponse, error) {
	resp, err := s.CreateOrderFromCheckout(ctx, cartID)
	if err == nil {
		return resp, nil
	}

	if model.IsValidation(err) {
		if recErr := s.cartRepo.ForceStatus(ctx, cartID, model.CartStatusUnpaid); recErr != nil {
			s.logger.Error().Err(recErr).
				Str("cart_id", cartID.String()).
				Msg("failed to revert cart to unpaid after order validation failure")
		} else {
			s.logger.Info().
				Str("cart_id", cartID.String()).
				Msg("cart reverted to unpaid after order validation failure")
		}
	}

	return nil, err
}

// CreateOrderFromCheckout turns a pending cart into an order: re-validates
// stock, decrements it, snapshots the cart items and marks the order
// awaiting payment, all in one transaction. Locks are taken cart first, then
// cart items in product order, then products, so concurrent creations and
// cancellations cannot deadlock. Idempotent per cart.
func (s *orderService) CreateOrderFromCheckout(ctx context.Context, cartID uuid.UUID) (*model.OrderResponse, error) {
	tx, err := s.orderRepo.BeginTx(ctx)
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

	cart, err := s.cartRepo.GetForUpdate(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		err = model.NewNotFoundError("cart")
		return nil, err
	}

	existing, err := s.orderRepo.GetByCartID(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		items, listErr := s.orderRepo.ListItems(ctx, existing.ID)
		if listErr != nil {
			err = listErr
			return nil, err
		}
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return orderResponse(existing, items), nil
	}

	if cart.Status != model.CartStatusPending {
		err = model.NewStateConflictError(model.ErrCodeCartNotConfirmed, "cart has not been confirmed for checkout")
		return nil, err
	}

	checkout, err := s.checkoutRepo.GetByCartIDTx(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if checkout == nil {
		err = model.NewValidationError(model.ErrCodeCheckoutMissing, "no checkout details saved for this cart")
		return nil, err
	}

	cartItems, err := s.cartRepo.ListItemsForUpdate(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if len(cartItems) == 0 {
		err = model.NewValidationError(model.ErrCodeEmptyCart, "cannot create an order from an empty cart")
		return nil, err
	}

	// Lock products in the same stable order as the cancel path, validate
	// every line before mutating anything, and only then decrement.
	products := make([]*model.Product, len(cartItems))
	var shortages []model.StockShortage
	for i := range cartItems {
		product, lockErr := s.productRepo.GetForUpdate(ctx, tx, cartItems[i].ProductID)
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		if product == nil {
			err = model.NewNotFoundError("product")
			return nil, err
		}
		products[i] = product
		if cartItems[i].Quantity > product.Stock {
			shortages = append(shortages, model.StockShortage{
				ProductID:   product.ID.String(),
				ProductName: product.Name,
				Requested:   cartItems[i].Quantity,
				Available:   product.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		err = model.NewInsufficientStockError(shortages)
		return nil, err
	}

	lowStockByVendor := make(map[uuid.UUID][]string)
	for i := range cartItems {
		product := products[i]
		crossed, changeErr := s.productRepo.ApplyStockChange(ctx, tx, product, product.Stock-cartItems[i].Quantity)
		if changeErr != nil {
			err = changeErr
			return nil, err
		}
		if crossed {
			lowStockByVendor[product.VendorID] = append(lowStockByVendor[product.VendorID], product.Name)
		}
	}

	billing := checkout.BillingAddress
	if billing == "" {
		billing = checkout.ShippingAddress
	}

	order := &model.Order{
		ID:              uuid.New(),
		CustomerID:      cart.CustomerID,
		CartID:          cartID,
		Status:          model.OrderStatusAwaitingPayment,
		ShippingAddress: checkout.ShippingAddress,
		BillingAddress:  billing,
		PaymentMethod:   checkout.PaymentMethod,
		CreatedAt:       time.Now(),
	}
	if err = s.orderRepo.Create(ctx, tx, order); err != nil {
		return nil, err
	}

	orderItems := make([]model.OrderItem, len(cartItems))
	for i := range cartItems {
		orderItems[i] = model.OrderItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProductID:       products[i].ID,
			ProductName:     products[i].Name,
			UnitPrice:       products[i].Price,
			DiscountPercent: products[i].DiscountPercent,
			Quantity:        cartItems[i].Quantity,
		}
	}
	if err = s.orderRepo.CreateItems(ctx, tx, orderItems); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("cart_id", cartID.String()).
		Int("items", len(orderItems)).
		Msg("order created")

	s.dispatchLowStockAlerts(ctx, lowStockByVendor)

	return orderResponse(order, orderItems), nil
}

// GetByID retrieves an order with its item snapshots.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	order, items, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, model.NewNotFoundError("order")
	}
	return orderResponse(order, items), nil
}

// Cancel restores the reserved stock, expires the bound cart and marks the
// order cancelled. Only awaiting-payment orders can be cancelled; a cancelled
// order is returned unchanged.
func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*model.Order, error) {
	tx, err := s.orderRepo.BeginTx(ctx)
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

	order, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		err = model.NewNotFoundError("order")
		return nil, err
	}

	if order.Status == model.OrderStatusCancelled {
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return order, nil
	}
	if order.Status != model.OrderStatusAwaitingPayment {
		err = model.NewStateConflictError(model.ErrCodeOrderNotCancellable,
			fmt.Sprintf("order in status %q cannot be cancelled", order.Status))
		return nil, err
	}

	// Same lock order as creation: cart, then items in product order, then
	// products.
	cart, err := s.cartRepo.GetForUpdate(ctx, tx, order.CartID)
	if err != nil {
		return nil, err
	}

	items, err := s.orderRepo.ListItemsForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	for i := range items {
		product, lockErr := s.productRepo.GetForUpdate(ctx, tx, items[i].ProductID)
		if lockErr != nil {
			err = lockErr
			return nil, err
		}
		if product == nil {
			continue
		}
		if _, err = s.productRepo.ApplyStockChange(ctx, tx, product, product.Stock+items[i].Quantity); err != nil {
			return nil, err
		}
	}

	if cart != nil && cart.Status != model.CartStatusExpired {
		if err = s.cartRepo.UpdateStatus(ctx, tx, cart.ID, model.CartStatusExpired); err != nil {
			return nil, err
		}
	}

	if err = s.orderRepo.UpdateStatus(ctx, tx, orderID, model.OrderStatusCancelled); err != nil {
		return nil, err
	}
	order.Status = model.OrderStatusCancelled

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("reason", reason).
		Msg("order cancelled, stock restored")

	return order, nil
}

// MarkOrderPaid moves the order and its cart to paid inside the caller's
// transaction. Idempotent on an already paid order.
func (s *orderService) MarkOrderPaid(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	order, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return model.NewNotFoundError("order")
	}
	if order.Status == model.OrderStatusPaid {
		return nil
	}
	if order.Status != model.OrderStatusAwaitingPayment {
		return model.NewStateConflictError(model.ErrCodeOrderNotPayable,
			fmt.Sprintf("order in status %q cannot be marked paid", order.Status))
	}

	cart, err := s.cartRepo.GetForUpdate(ctx, tx, order.CartID)
	if err != nil {
		return err
	}
	if cart == nil || cart.Status != model.CartStatusPending {
		return model.NewStateConflictError(model.ErrCodeOrderNotConfirmed, "cart backing this order is no longer in checkout")
	}

	items, err := s.cartRepo.ListItemsForUpdate(ctx, tx, cart.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return model.NewStateConflictError(model.ErrCodeOrderNotConfirmed, "cart backing this order has no items")
	}

	if err := s.cartRepo.UpdateStatus(ctx, tx, cart.ID, model.CartStatusPaid); err != nil {
		return err
	}
	if err := s.orderRepo.UpdateStatus(ctx, tx, orderID, model.OrderStatusPaid); err != nil {
		return err
	}

	return nil
}

// dispatchLowStockAlerts sends one batched alert per vendor after the order
// transaction has committed. Failures are logged, never propagated.
func (s *orderService) dispatchLowStockAlerts(ctx context.Context, byVendor map[uuid.UUID][]string) {
	for vendorID, names := range byVendor {
		body := fmt.Sprintf("The following products are running low on stock: %s", strings.Join(names, ", "))
		if err := s.notifier.Send(ctx, "Low stock alert", body, vendorID.String()); err != nil {
			s.logger.Warn().Err(err).
				Str("vendor_id", vendorID.String()).
				Msg("failed to send low stock alert")
		}
	}
}

func orderResponse(order *model.Order, items []model.OrderItem) *model.OrderResponse {
	return &model.OrderResponse{
		Order: *order,
		Items: items,
		Total: model.OrderTotal(items),
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-core/internal/model"
	"shop-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// checkoutService implements CheckoutService.
type checkoutService struct {
	checkoutRepo repository.CheckoutRepository
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	logger       zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	checkoutRepo repository.CheckoutRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		checkoutRepo: checkoutRepo,
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		logger:       logger.With().Str("service", "checkout").Logger(),
	}
}

// GetOrCreateDraft returns the cart's checkout draft, creating an empty one
// when the cart has none yet. The cart must still be unpaid.
func (s *checkoutService) GetOrCreateDraft(ctx context.Context, cartID uuid.UUID) (*model.Checkout, error) {
	cart, err := s.cartRepo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.NewNotFoundError("cart")
	}
	if err := assertCartModifiable(cart, false); err != nil {
		return nil, err
	}

	checkout, err := s.checkoutRepo.GetByCartID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if checkout != nil {
		return checkout, nil
	}

	now := time.Now()
	checkout = &model.Checkout{
		ID:        uuid.New(),
		CartID:    cartID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.checkoutRepo.Create(ctx, checkout); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("checkout_id", checkout.ID.String()).
		Str("cart_id", cartID.String()).
		Msg("checkout draft created")

	return checkout, nil
}

// UpdateDraft applies the provided fields to the draft. Partial updates are
// fine; completeness is enforced at confirm time.
func (s *checkoutService) UpdateDraft(ctx context.Context, cartID uuid.UUID, req *model.UpdateCheckoutRequest) (*model.Checkout, error) {
	checkout, err := s.GetOrCreateDraft(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if req.ShippingAddress != nil {
		checkout.ShippingAddress = *req.ShippingAddress
	}
	if req.BillingAddress != nil {
		checkout.BillingAddress = *req.BillingAddress
	}
	if req.PaymentMethod != nil {
		checkout.PaymentMethod = *req.PaymentMethod
	}
	checkout.UpdatedAt = time.Now()

	if err := s.checkoutRepo.Update(ctx, checkout); err != nil {
		return nil, err
	}

	return checkout, nil
}

// Confirm validates the draft, the cart contents and current stock, then
// moves the cart to pending. Stock is checked but never decremented here,
// so a failed confirmation leaves nothing to undo.
func (s *checkoutService) Confirm(ctx context.Context, cartID uuid.UUID) (*model.Checkout, error) {
	tx, err := s.cartRepo.BeginTx(ctx)
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
	if err = assertCartModifiable(cart, false); err != nil {
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

	if missing := checkout.MissingFields(); len(missing) > 0 {
		err = model.NewCheckoutIncompleteError(missing)
		return nil, err
	}

	items, err := s.cartRepo.ListItemsForUpdate(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		err = model.NewValidationError(model.ErrCodeEmptyCart, "cannot check out an empty cart")
		return nil, err
	}

	if err = s.validateStock(ctx, tx, items); err != nil {
		return nil, err
	}

	if err = s.cartRepo.UpdateStatus(ctx, tx, cartID, model.CartStatusPending); err != nil {
		return nil, err
	}

	if err = s.cartRepo.Touch(ctx, tx, cartID, time.Now()); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("cart_id", cartID.String()).
		Int("items", len(items)).
		Msg("checkout confirmed, cart pending")

	return checkout, nil
}

// validateStock checks every cart line against current stock and collects
// all shortages rather than stopping at the first.
func (s *checkoutService) validateStock(ctx context.Context, tx pgx.Tx, items []model.CartItem) error {
	var shortages []model.StockShortage
	for i := range items {
		product, err := s.productRepo.GetForUpdate(ctx, tx, items[i].ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return model.NewNotFoundError("product")
		}
		if items[i].Quantity > product.Stock {
			shortages = append(shortages, model.StockShortage{
				ProductID:   product.ID.String(),
				ProductName: product.Name,
				Requested:   items[i].Quantity,
				Available:   product.Stock,
			})
		}
	}

	if len(shortages) > 0 {
		return model.NewInsufficientStockError(shortages)
	}
	return nil
}

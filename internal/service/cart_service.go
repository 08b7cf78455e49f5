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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// nonModifiableCartStates maps each locked cart state to its user-facing
// message. Only unpaid carts are modifiable.
var nonModifiableCartStates = map[model.CartStatus]string{
	model.CartStatusPaid:    "this cart has already been paid and cannot be modified",
	model.CartStatusExpired: "this cart is no longer active",
	model.CartStatusPending: "this cart is currently in checkout and cannot be modified",
}

// assertCartModifiable ensures the cart can be modified. Admin override must
// be explicitly allowed.
func assertCartModifiable(cart *model.Cart, allowAdminOverride bool) error {
	message, locked := nonModifiableCartStates[cart.Status]
	if !locked {
		return nil
	}
	if allowAdminOverride {
		return nil
	}
	return model.NewStateConflictError(model.ErrCodeCartLocked, message)
}

// isUniqueViolation reports whether err is a postgres unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// cartService implements CartService.
type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	cartTTL     time.Duration
	logger      zerolog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	cartTTL time.Duration,
	logger zerolog.Logger,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		cartTTL:     cartTTL,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

// GetOrCreateCart returns the customer's live unpaid/pending cart whose last
// activity falls inside the TTL window, or creates a fresh unpaid cart. The
// partial unique index on (customer_id) WHERE status = 'unpaid' resolves
// concurrent creation: the loser re-reads the winner's cart.
func (s *cartService) GetOrCreateCart(ctx context.Context, customerID uuid.UUID) (*model.CartView, error) {
	cart, err := s.getOrCreate(ctx, customerID)
	if err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// Lost the creation race; the winner's cart is live now.
		s.logger.Debug().Str("customer_id", customerID.String()).Msg("concurrent cart creation, re-reading")
		cart, err = s.getOrCreate(ctx, customerID)
		if err != nil {
			return nil, err
		}
	}

	return s.buildView(ctx, cart)
}

func (s *cartService) getOrCreate(ctx context.Context, customerID uuid.UUID) (*model.Cart, error) {
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

	cutoff := time.Now().Add(-s.cartTTL)
	cart, err := s.cartRepo.FindLiveByCustomer(ctx, tx, customerID, cutoff)
	if err != nil {
		return nil, err
	}

	if cart == nil {
		// A stale unpaid cart still holds the customer's slot in the
		// partial unique index; expire it before creating the replacement.
		var stale *model.Cart
		stale, err = s.cartRepo.FindUnpaidByCustomer(ctx, tx, customerID)
		if err != nil {
			return nil, err
		}
		if stale != nil {
			if err = s.cartRepo.UpdateStatus(ctx, tx, stale.ID, model.CartStatusExpired); err != nil {
				return nil, err
			}
			s.logger.Info().
				Str("cart_id", stale.ID.String()).
				Str("customer_id", customerID.String()).
				Msg("stale cart expired, creating replacement")
		}

		now := time.Now()
		cart = &model.Cart{
			ID:             uuid.New(),
			CustomerID:     &customerID,
			Status:         model.CartStatusUnpaid,
			CreatedAt:      now,
			LastActivityAt: now,
		}
		if err = s.cartRepo.Create(ctx, tx, cart); err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("cart_id", cart.ID.String()).
			Str("customer_id", customerID.String()).
			Msg("cart created")
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return cart, nil
}

// GetCartView returns the cart with items and computed total.
func (s *cartService) GetCartView(ctx context.Context, cartID uuid.UUID) (*model.CartView, error) {
	cart, err := s.cartRepo.GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.NewNotFoundError("cart")
	}
	return s.buildView(ctx, cart)
}

func (s *cartService) buildView(ctx context.Context, cart *model.Cart) (*model.CartView, error) {
	items, err := s.cartRepo.ListItemViews(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	view := &model.CartView{Cart: *cart, Items: items}
	for i := range items {
		view.Total += items[i].LineTotal()
	}
	return view, nil
}

// ExpireCart transitions the cart to expired. Already paid or expired carts
// are left untouched.
func (s *cartService) ExpireCart(ctx context.Context, cartID uuid.UUID, reason string) error {
	tx, err := s.cartRepo.BeginTx(ctx)
	if err != nil {
		return err
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
		return err
	}
	if cart == nil {
		err = model.NewNotFoundError("cart")
		return err
	}

	if cart.Status == model.CartStatusPaid || cart.Status == model.CartStatusExpired {
		return tx.Commit(ctx)
	}

	if err = s.cartRepo.UpdateStatus(ctx, tx, cartID, model.CartStatusExpired); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("cart_id", cartID.String()).
		Str("reason", reason).
		Msg("cart expired")

	return nil
}

// AddItem adds a product to the cart or increments its quantity if already
// present (blind append, not set). Returns whether a new row was created.
func (s *cartService) AddItem(ctx context.Context, cartID uuid.UUID, req *model.AddCartItemRequest) (*model.CartItem, bool, error) {
	if req == nil || req.Quantity <= 0 {
		return nil, false, model.NewValidationError(model.ErrCodeInvalidQuantity, "quantity must be greater than zero")
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, false, err
	}
	if product == nil {
		return nil, false, model.NewNotFoundError("product")
	}

	tx, err := s.cartRepo.BeginTx(ctx)
	if err != nil {
		return nil, false, err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	cart, err := s.lockModifiableCart(ctx, tx, cartID)
	if err != nil {
		return nil, false, err
	}

	item, err := s.cartRepo.GetItemByProduct(ctx, tx, cart.ID, req.ProductID)
	if err != nil {
		return nil, false, err
	}

	created := item == nil
	if created {
		item = &model.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		}
		if err = s.cartRepo.InsertItem(ctx, tx, item); err != nil {
			return nil, false, err
		}
	} else {
		item.Quantity += req.Quantity
		if err = s.cartRepo.UpdateItemQuantity(ctx, tx, item.ID, item.Quantity); err != nil {
			return nil, false, err
		}
	}

	if err = s.cartRepo.Touch(ctx, tx, cart.ID, time.Now()); err != nil {
		return nil, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().
		Str("cart_id", cart.ID.String()).
		Str("product_id", req.ProductID.String()).
		Int("quantity", item.Quantity).
		Bool("created", created).
		Msg("cart item added")

	return item, created, nil
}

// UpdateItem sets a cart item's quantity. Zero or negative deletes the row;
// an unchanged quantity returns without touching cart activity.
func (s *cartService) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, quantity int) (*model.CartItem, error) {
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

	cart, err := s.lockModifiableCart(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	item, err := s.cartRepo.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		err = model.NewNotFoundError("cart item")
		return nil, err
	}

	if quantity <= 0 {
		if err = s.cartRepo.DeleteItem(ctx, tx, item.ID); err != nil {
			return nil, err
		}
		if err = s.cartRepo.Touch(ctx, tx, cart.ID, time.Now()); err != nil {
			return nil, err
		}
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, nil
	}

	if quantity == item.Quantity {
		// No effective change; leave last_activity_at alone.
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return item, nil
	}

	item.Quantity = quantity
	if err = s.cartRepo.UpdateItemQuantity(ctx, tx, item.ID, quantity); err != nil {
		return nil, err
	}

	if err = s.cartRepo.Touch(ctx, tx, cart.ID, time.Now()); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, nil
}

// RemoveItem deletes a cart item.
func (s *cartService) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tx, err := s.cartRepo.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	cart, err := s.lockModifiableCart(ctx, tx, cartID)
	if err != nil {
		return err
	}

	item, err := s.cartRepo.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		err = model.NewNotFoundError("cart item")
		return err
	}

	if err = s.cartRepo.DeleteItem(ctx, tx, item.ID); err != nil {
		return err
	}

	if err = s.cartRepo.Touch(ctx, tx, cart.ID, time.Now()); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// lockModifiableCart row-locks the cart and ensures it is still unpaid.
// Every item mutation goes through this, so writes to one cart serialize.
func (s *cartService) lockModifiableCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) (*model.Cart, error) {
	cart, err := s.cartRepo.GetForUpdate(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.NewNotFoundError("cart")
	}
	if err := assertCartModifiable(cart, false); err != nil {
		return nil, err
	}
	return cart, nil
}

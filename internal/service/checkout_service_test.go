package service

import (
	"context"
	"errors"
	"testing"

	"shop-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func completeCheckout(cartID uuid.UUID) *model.Checkout {
	return &model.Checkout{
		ID:              uuid.New(),
		CartID:          cartID,
		ShippingAddress: "1 Test Street",
		BillingAddress:  "1 Test Street",
		PaymentMethod:   "card",
	}
}

func TestCheckoutService_GetOrCreateDraft_CreatesWhenMissing(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("GetByID", ctx, cartID).Return(cart, nil)
	mockCheckoutRepo.On("GetByCartID", ctx, cartID).Return(nil, nil)
	mockCheckoutRepo.On("Create", ctx, mock.AnythingOfType("*model.Checkout")).Return(nil)

	checkout, err := svc.GetOrCreateDraft(ctx, cartID)

	require.NoError(t, err)
	require.NotNil(t, checkout)
	assert.Equal(t, cartID, checkout.CartID)
	assert.Empty(t, checkout.ShippingAddress)

	mockCheckoutRepo.AssertExpectations(t)
}

func TestCheckoutService_GetOrCreateDraft_LockedCart(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusPaid}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("GetByID", ctx, cartID).Return(cart, nil)

	checkout, err := svc.GetOrCreateDraft(ctx, cartID)

	require.Error(t, err)
	assert.True(t, model.IsStateConflict(err))
	assert.Nil(t, checkout)

	mockCheckoutRepo.AssertNotCalled(t, "Create")
}

func TestCheckoutService_UpdateDraft_PartialUpdate(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	existing := &model.Checkout{
		ID:              uuid.New(),
		CartID:          cartID,
		ShippingAddress: "old address",
		PaymentMethod:   "card",
	}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("GetByID", ctx, cartID).Return(cart, nil)
	mockCheckoutRepo.On("GetByCartID", ctx, cartID).Return(existing, nil)
	mockCheckoutRepo.On("Update", ctx, existing).Return(nil)

	newShipping := "2 New Road"
	checkout, err := svc.UpdateDraft(ctx, cartID, &model.UpdateCheckoutRequest{ShippingAddress: &newShipping})

	require.NoError(t, err)
	assert.Equal(t, "2 New Road", checkout.ShippingAddress)
	// Untouched fields keep their stored values.
	assert.Equal(t, "card", checkout.PaymentMethod)

	mockCheckoutRepo.AssertExpectations(t)
}

func TestCheckoutService_Confirm_Success(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	checkout := completeCheckout(cartID)
	productID := uuid.New()
	items := []model.CartItem{{ID: uuid.New(), CartID: cartID, ProductID: productID, Quantity: 2}}
	product := &model.Product{ID: productID, Name: "Widget", Stock: 5}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCheckoutRepo.On("GetByCartIDTx", ctx, mockTx, cartID).Return(checkout, nil)
	mockCartRepo.On("ListItemsForUpdate", ctx, mockTx, cartID).Return(items, nil)
	mockProductRepo.On("GetForUpdate", ctx, mockTx, productID).Return(product, nil)
	mockCartRepo.On("UpdateStatus", ctx, mockTx, cartID, model.CartStatusPending).Return(nil)
	mockCartRepo.On("Touch", ctx, mockTx, cartID, mock.AnythingOfType("time.Time")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)

	result, err := svc.Confirm(ctx, cartID)

	require.NoError(t, err)
	assert.Equal(t, checkout.ID, result.ID)

	// Confirmation never decrements stock.
	mockProductRepo.AssertNotCalled(t, "ApplyStockChange")
	mockCartRepo.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestCheckoutService_Confirm_MissingDraft(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCheckoutRepo.On("GetByCartIDTx", ctx, mockTx, cartID).Return(nil, nil)
	mockTx.On("Rollback", ctx).Return(nil)

	result, err := svc.Confirm(ctx, cartID)

	require.Error(t, err)
	assert.Nil(t, result)

	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, model.ErrCodeCheckoutMissing, ve.Code)

	mockCartRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestCheckoutService_Confirm_IncompleteDraft(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	checkout := &model.Checkout{ID: uuid.New(), CartID: cartID, ShippingAddress: "1 Test Street"}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCheckoutRepo.On("GetByCartIDTx", ctx, mockTx, cartID).Return(checkout, nil)
	mockTx.On("Rollback", ctx).Return(nil)

	result, err := svc.Confirm(ctx, cartID)

	require.Error(t, err)
	assert.Nil(t, result)

	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, model.ErrCodeCheckoutIncomplete, ve.Code)
	assert.ElementsMatch(t, []string{"billing_address", "payment_method"}, ve.MissingFields)
}

func TestCheckoutService_Confirm_EmptyCart(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	checkout := completeCheckout(cartID)

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCheckoutRepo.On("GetByCartIDTx", ctx, mockTx, cartID).Return(checkout, nil)
	mockCartRepo.On("ListItemsForUpdate", ctx, mockTx, cartID).Return([]model.CartItem{}, nil)
	mockTx.On("Rollback", ctx).Return(nil)

	result, err := svc.Confirm(ctx, cartID)

	require.Error(t, err)
	assert.Nil(t, result)

	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, model.ErrCodeEmptyCart, ve.Code)
}

func TestCheckoutService_Confirm_CollectsAllShortages(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	checkout := completeCheckout(cartID)

	productA := &model.Product{ID: uuid.New(), Name: "Widget A", Stock: 1}
	productB := &model.Product{ID: uuid.New(), Name: "Widget B", Stock: 0}
	items := []model.CartItem{
		{ID: uuid.New(), CartID: cartID, ProductID: productA.ID, Quantity: 3},
		{ID: uuid.New(), CartID: cartID, ProductID: productB.ID, Quantity: 1},
	}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCheckoutRepo.On("GetByCartIDTx", ctx, mockTx, cartID).Return(checkout, nil)
	mockCartRepo.On("ListItemsForUpdate", ctx, mockTx, cartID).Return(items, nil)
	mockProductRepo.On("GetForUpdate", ctx, mockTx, productA.ID).Return(productA, nil)
	mockProductRepo.On("GetForUpdate", ctx, mockTx, productB.ID).Return(productB, nil)
	mockTx.On("Rollback", ctx).Return(nil)

	result, err := svc.Confirm(ctx, cartID)

	require.Error(t, err)
	assert.Nil(t, result)

	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, model.ErrCodeInsufficientStock, ve.Code)
	require.Len(t, ve.Shortages, 2)
	assert.Equal(t, "Widget A", ve.Shortages[0].ProductName)
	assert.Equal(t, 1, ve.Shortages[0].Available)
	assert.Equal(t, "Widget B", ve.Shortages[1].ProductName)

	mockCartRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestCheckoutService_Confirm_LockedCart(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusPending}

	mockCheckoutRepo := new(MockCheckoutRepository)
	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCheckoutService(mockCheckoutRepo, mockCartRepo, mockProductRepo, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockTx.On("Rollback", ctx).Return(nil)

	result, err := svc.Confirm(ctx, cartID)

	require.Error(t, err)
	assert.True(t, model.IsStateConflict(err))
	assert.Nil(t, result)
}

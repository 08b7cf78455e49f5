package service

import (
	"context"
	"testing"
	"time"

	"shop-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCartService_GetOrCreateCart_ExistingCart(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	customerID := uuid.New()
	cart := &model.Cart{
		ID:             uuid.New(),
		CustomerID:     &customerID,
		Status:         model.CartStatusUnpaid,
		LastActivityAt: time.Now(),
	}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("FindLiveByCustomer", ctx, mockTx, customerID, mock.AnythingOfType("time.Time")).
		Return(cart, nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockCartRepo.On("ListItemViews", ctx, cart.ID).Return([]model.CartItemView{}, nil)

	view, err := svc.GetOrCreateCart(ctx, customerID)

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, cart.ID, view.ID)
	assert.Zero(t, view.Total)

	mockCartRepo.AssertNotCalled(t, "Create")
	mockCartRepo.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestCartService_GetOrCreateCart_CreatesFreshCart(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	customerID := uuid.New()

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("FindLiveByCustomer", ctx, mockTx, customerID, mock.AnythingOfType("time.Time")).
		Return(nil, nil)
	mockCartRepo.On("FindUnpaidByCustomer", ctx, mockTx, customerID).Return(nil, nil)
	mockCartRepo.On("Create", ctx, mockTx, mock.AnythingOfType("*model.Cart")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockCartRepo.On("ListItemViews", ctx, mock.AnythingOfType("uuid.UUID")).
		Return([]model.CartItemView{}, nil)

	view, err := svc.GetOrCreateCart(ctx, customerID)

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, model.CartStatusUnpaid, view.Status)
	require.NotNil(t, view.CustomerID)
	assert.Equal(t, customerID, *view.CustomerID)

	mockCartRepo.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestCartService_GetOrCreateCart_ExpiresStaleUnpaidCart(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	customerID := uuid.New()
	stale := &model.Cart{
		ID:             uuid.New(),
		CustomerID:     &customerID,
		Status:         model.CartStatusUnpaid,
		LastActivityAt: time.Now().Add(-48 * time.Hour),
	}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	// The stale cart is outside the TTL window, yet still holds the
	// customer's unpaid slot; it must be expired before the insert.
	mockCartRepo.On("FindLiveByCustomer", ctx, mockTx, customerID, mock.AnythingOfType("time.Time")).
		Return(nil, nil)
	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("FindUnpaidByCustomer", ctx, mockTx, customerID).Return(stale, nil)
	mockCartRepo.On("UpdateStatus", ctx, mockTx, stale.ID, model.CartStatusExpired).Return(nil)
	mockCartRepo.On("Create", ctx, mockTx, mock.AnythingOfType("*model.Cart")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)
	mockCartRepo.On("ListItemViews", ctx, mock.AnythingOfType("uuid.UUID")).
		Return([]model.CartItemView{}, nil)

	view, err := svc.GetOrCreateCart(ctx, customerID)

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, model.CartStatusUnpaid, view.Status)
	assert.NotEqual(t, stale.ID, view.ID)

	mockCartRepo.AssertCalled(t, "UpdateStatus", ctx, mockTx, stale.ID, model.CartStatusExpired)
	mockCartRepo.AssertNumberOfCalls(t, "Create", 1)
	mockCartRepo.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestCartService_GetOrCreateCart_LosesCreationRace(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	customerID := uuid.New()
	winner := &model.Cart{
		ID:             uuid.New(),
		CustomerID:     &customerID,
		Status:         model.CartStatusUnpaid,
		LastActivityAt: time.Now(),
	}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("FindLiveByCustomer", ctx, mockTx, customerID, mock.AnythingOfType("time.Time")).
		Return(nil, nil).Once()
	mockCartRepo.On("FindUnpaidByCustomer", ctx, mockTx, customerID).Return(nil, nil)
	mockCartRepo.On("Create", ctx, mockTx, mock.AnythingOfType("*model.Cart")).
		Return(&pgconn.PgError{Code: "23505"})
	mockTx.On("Rollback", ctx).Return(nil)
	// Second attempt sees the winner's cart.
	mockCartRepo.On("FindLiveByCustomer", ctx, mockTx, customerID, mock.AnythingOfType("time.Time")).
		Return(winner, nil).Once()
	mockTx.On("Commit", ctx).Return(nil)
	mockCartRepo.On("ListItemViews", ctx, winner.ID).Return([]model.CartItemView{}, nil)

	view, err := svc.GetOrCreateCart(ctx, customerID)

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, winner.ID, view.ID)

	mockCartRepo.AssertExpectations(t)
}

func TestCartService_AddItem_NewItem(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	productID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	product := &model.Product{ID: productID, Name: "Widget", Price: 9.99, Stock: 10}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockProductRepo.On("GetByID", ctx, productID).Return(product, nil)
	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCartRepo.On("GetItemByProduct", ctx, mockTx, cartID, productID).Return(nil, nil)
	mockCartRepo.On("InsertItem", ctx, mockTx, mock.AnythingOfType("*model.CartItem")).Return(nil)
	mockCartRepo.On("Touch", ctx, mockTx, cartID, mock.AnythingOfType("time.Time")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)

	item, created, err := svc.AddItem(ctx, cartID, &model.AddCartItemRequest{ProductID: productID, Quantity: 3})

	require.NoError(t, err)
	require.NotNil(t, item)
	assert.True(t, created)
	assert.Equal(t, 3, item.Quantity)

	mockCartRepo.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

func TestCartService_AddItem_AppendsQuantity(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	productID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	product := &model.Product{ID: productID, Name: "Widget", Price: 9.99, Stock: 10}
	existing := &model.CartItem{ID: uuid.New(), CartID: cartID, ProductID: productID, Quantity: 2}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockProductRepo.On("GetByID", ctx, productID).Return(product, nil)
	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCartRepo.On("GetItemByProduct", ctx, mockTx, cartID, productID).Return(existing, nil)
	mockCartRepo.On("UpdateItemQuantity", ctx, mockTx, existing.ID, 5).Return(nil)
	mockCartRepo.On("Touch", ctx, mockTx, cartID, mock.AnythingOfType("time.Time")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)

	item, created, err := svc.AddItem(ctx, cartID, &model.AddCartItemRequest{ProductID: productID, Quantity: 3})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 5, item.Quantity)

	mockCartRepo.AssertNotCalled(t, "InsertItem")
	mockCartRepo.AssertExpectations(t)
}

func TestCartService_AddItem_InvalidQuantity(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	for _, qty := range []int{0, -1} {
		item, created, err := svc.AddItem(ctx, uuid.New(), &model.AddCartItemRequest{ProductID: uuid.New(), Quantity: qty})

		require.Error(t, err)
		assert.True(t, model.IsValidation(err))
		assert.Nil(t, item)
		assert.False(t, created)
	}

	mockCartRepo.AssertNotCalled(t, "BeginTx")
}

func TestCartService_AddItem_CartLocked(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	productID := uuid.New()
	product := &model.Product{ID: productID, Name: "Widget", Price: 9.99, Stock: 10}

	tests := []struct {
		name   string
		status model.CartStatus
	}{
		{"Pending cart", model.CartStatusPending},
		{"Paid cart", model.CartStatusPaid},
		{"Expired cart", model.CartStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := &model.Cart{ID: cartID, Status: tt.status}

			mockCartRepo := new(MockCartRepository)
			mockProductRepo := new(MockProductRepository)
			mockTx := new(MockTx)

			svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

			mockProductRepo.On("GetByID", ctx, productID).Return(product, nil)
			mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
			mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
			mockTx.On("Rollback", ctx).Return(nil)

			item, _, err := svc.AddItem(ctx, cartID, &model.AddCartItemRequest{ProductID: productID, Quantity: 1})

			require.Error(t, err)
			assert.True(t, model.IsStateConflict(err))
			assert.Nil(t, item)

			mockCartRepo.AssertNotCalled(t, "InsertItem")
			mockTx.AssertExpectations(t)
		})
	}
}

func TestCartService_UpdateItem_ZeroQuantityDeletes(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	existing := &model.CartItem{ID: uuid.New(), CartID: cartID, ProductID: uuid.New(), Quantity: 2}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCartRepo.On("GetItem", ctx, cartID, existing.ID).Return(existing, nil)
	mockCartRepo.On("DeleteItem", ctx, mockTx, existing.ID).Return(nil)
	mockCartRepo.On("Touch", ctx, mockTx, cartID, mock.AnythingOfType("time.Time")).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)

	item, err := svc.UpdateItem(ctx, cartID, existing.ID, 0)

	require.NoError(t, err)
	assert.Nil(t, item)

	mockCartRepo.AssertNotCalled(t, "UpdateItemQuantity")
	mockCartRepo.AssertExpectations(t)
}

func TestCartService_UpdateItem_UnchangedQuantitySkipsTouch(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}
	existing := &model.CartItem{ID: uuid.New(), CartID: cartID, ProductID: uuid.New(), Quantity: 4}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCartRepo.On("GetItem", ctx, cartID, existing.ID).Return(existing, nil)
	mockTx.On("Commit", ctx).Return(nil)

	item, err := svc.UpdateItem(ctx, cartID, existing.ID, 4)

	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 4, item.Quantity)

	mockCartRepo.AssertNotCalled(t, "Touch")
	mockCartRepo.AssertNotCalled(t, "UpdateItemQuantity")
}

func TestCartService_ExpireCart_AlreadyTerminal(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	for _, status := range []model.CartStatus{model.CartStatusPaid, model.CartStatusExpired} {
		cartID := uuid.New()
		cart := &model.Cart{ID: cartID, Status: status}

		mockCartRepo := new(MockCartRepository)
		mockProductRepo := new(MockProductRepository)
		mockTx := new(MockTx)

		svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

		mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
		mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
		mockTx.On("Commit", ctx).Return(nil)

		err := svc.ExpireCart(ctx, cartID, "test")

		require.NoError(t, err)
		mockCartRepo.AssertNotCalled(t, "UpdateStatus")
	}
}

func TestCartService_ExpireCart_Unpaid(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	cartID := uuid.New()
	cart := &model.Cart{ID: cartID, Status: model.CartStatusUnpaid}

	mockCartRepo := new(MockCartRepository)
	mockProductRepo := new(MockProductRepository)
	mockTx := new(MockTx)

	svc := NewCartService(mockCartRepo, mockProductRepo, time.Hour, logger)

	mockCartRepo.On("BeginTx", ctx).Return(mockTx, nil)
	mockCartRepo.On("GetForUpdate", ctx, mockTx, cartID).Return(cart, nil)
	mockCartRepo.On("UpdateStatus", ctx, mockTx, cartID, model.CartStatusExpired).Return(nil)
	mockTx.On("Commit", ctx).Return(nil)

	err := svc.ExpireCart(ctx, cartID, "cart ttl exceeded")

	require.NoError(t, err)
	mockCartRepo.AssertExpectations(t)
	mockTx.AssertExpectations(t)
}

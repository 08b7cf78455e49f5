package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"shop-core/internal/model"
	"shop-core/internal/notify"
	"shop-core/internal/repository"
	"shop-core/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	createSchema(t, pool)

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// createSchema creates the database schema for testing.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			vendor_id UUID NOT NULL,
			name VARCHAR(255) NOT NULL,
			price DECIMAL(10, 2) NOT NULL,
			discount_percent INTEGER NOT NULL DEFAULT 0,
			stock INTEGER NOT NULL CHECK (stock >= 0),
			initial_stock INTEGER NOT NULL DEFAULT 0,
			low_stock_threshold INTEGER NOT NULL DEFAULT 0,
			low_stock_alert_sent BOOLEAN NOT NULL DEFAULT FALSE,
			critical_stock_alert_sent BOOLEAN NOT NULL DEFAULT FALSE,
			last_activity_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS carts (
			id UUID PRIMARY KEY,
			customer_id UUID,
			status VARCHAR(20) NOT NULL DEFAULT 'unpaid',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS uq_carts_customer_unpaid
			ON carts (customer_id) WHERE status = 'unpaid';

		CREATE TABLE IF NOT EXISTS cart_items (
			id UUID PRIMARY KEY,
			cart_id UUID NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			UNIQUE (cart_id, product_id)
		);

		CREATE TABLE IF NOT EXISTS checkouts (
			id UUID PRIMARY KEY,
			cart_id UUID NOT NULL UNIQUE REFERENCES carts(id) ON DELETE CASCADE,
			shipping_address TEXT NOT NULL DEFAULT '',
			billing_address TEXT NOT NULL DEFAULT '',
			payment_method VARCHAR(50) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			customer_id UUID,
			cart_id UUID NOT NULL UNIQUE REFERENCES carts(id),
			status VARCHAR(20) NOT NULL,
			shipping_address TEXT NOT NULL,
			billing_address TEXT NOT NULL,
			payment_method VARCHAR(50) NOT NULL,
			payment_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
			final_payment_reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES products(id),
			product_name VARCHAR(255) NOT NULL,
			unit_price DECIMAL(10, 2) NOT NULL,
			discount_percent INTEGER NOT NULL DEFAULT 0,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			UNIQUE (order_id, product_id)
		);

		CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id),
			amount DECIMAL(10, 2) NOT NULL,
			provider VARCHAR(50) NOT NULL,
			reference VARCHAR(64) NOT NULL UNIQUE,
			status VARCHAR(20) NOT NULL,
			payment_alert BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_order_live
			ON payments (order_id) WHERE status <> 'failed';

		CREATE INDEX IF NOT EXISTS idx_cart_items_cart_id ON cart_items(cart_id);
		CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
		CREATE INDEX IF NOT EXISTS idx_carts_status_activity ON carts(status, last_activity_at);
		CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at);
	`

	_, err := pool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
}

// SeedProduct inserts a product and returns its id.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, name string, price float64, stock, threshold int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products (id, vendor_id, name, price, stock, initial_stock, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
	`, id, uuid.New(), name, price, stock, threshold)
	if err != nil {
		t.Fatalf("failed to seed product %q: %v", name, err)
	}
	return id
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"payments", "order_items", "orders", "checkouts", "cart_items", "carts", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// Services bundles the full service stack wired against the test database.
type Services struct {
	ProductRepo  repository.ProductRepository
	CartRepo     repository.CartRepository
	CheckoutRepo repository.CheckoutRepository
	OrderRepo    repository.OrderRepository
	PaymentRepo  repository.PaymentRepository

	Cart     service.CartService
	Checkout service.CheckoutService
	Order    service.OrderService
	Payment  service.PaymentService
}

// NewServices wires repositories and services over the pool with a log-only
// notifier and the given cart TTL.
func NewServices(pool *pgxpool.Pool, cartTTL time.Duration) *Services {
	logger := zerolog.Nop()

	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	checkoutRepo := repository.NewCheckoutRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)

	notifier := notify.NewLogNotifier(logger)

	cartService := service.NewCartService(cartRepo, productRepo, cartTTL, logger)
	checkoutService := service.NewCheckoutService(checkoutRepo, cartRepo, productRepo, logger)
	orderService := service.NewOrderService(orderRepo, cartRepo, checkoutRepo, productRepo, notifier, logger)
	paymentService := service.NewPaymentService(paymentRepo, orderRepo, orderService, notifier, logger)

	return &Services{
		ProductRepo:  productRepo,
		CartRepo:     cartRepo,
		CheckoutRepo: checkoutRepo,
		OrderRepo:    orderRepo,
		PaymentRepo:  paymentRepo,
		Cart:         cartService,
		Checkout:     checkoutService,
		Order:        orderService,
		Payment:      paymentService,
	}
}

// CompleteCheckout fills and confirms the checkout draft for the cart.
func CompleteCheckout(t *testing.T, svc *Services, cartID uuid.UUID) {
	t.Helper()

	ctx := context.Background()

	shipping := "1 Integration Way"
	billing := "1 Integration Way"
	method := "card"
	if _, err := svc.Checkout.UpdateDraft(ctx, cartID, &model.UpdateCheckoutRequest{
		ShippingAddress: &shipping,
		BillingAddress:  &billing,
		PaymentMethod:   &method,
	}); err != nil {
		t.Fatalf("failed to fill checkout draft: %v", err)
	}

	if _, err := svc.Checkout.Confirm(ctx, cartID); err != nil {
		t.Fatalf("failed to confirm checkout: %v", err)
	}
}

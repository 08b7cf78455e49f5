package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-core/internal/config"
	"shop-core/internal/database"
	"shop-core/internal/handler"
	"shop-core/internal/model"
	"shop-core/internal/notify"
	"shop-core/internal/repository"
	"shop-core/internal/router"
	"shop-core/internal/service"
	"shop-core/internal/sweeper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting shop-core API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	checkoutRepo := repository.NewCheckoutRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)

	// Initialize notification channel with Kafka and log fallback
	var notifier notify.Notifier
	if cfg.Kafka.Enabled {
		kafkaNotifier, err := notify.NewKafkaNotifier(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise kafka notifier, falling back to log-only notifications")
			notifier = notify.NewLogNotifier(logger)
		} else {
			notifier = kafkaNotifier
		}
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Info().Msg("using log-only notifications (kafka disabled)")
	}
	defer notifier.Close()

	// Initialize services
	cartService := service.NewCartService(cartRepo, productRepo, cfg.Lifecycle.CartTTL, logger)
	checkoutService := service.NewCheckoutService(checkoutRepo, cartRepo, productRepo, logger)
	orderService := service.NewOrderService(orderRepo, cartRepo, checkoutRepo, productRepo, notifier, logger)
	paymentService := service.NewPaymentService(paymentRepo, orderRepo, orderService, notifier, logger)

	// Initialize lifecycle sweeper
	jobs := []sweeper.Job{
		sweeper.NewCartSweepJob(cartRepo, cartService, cfg.Lifecycle.CartTTL),
		sweeper.NewCheckoutSweepJob(cartRepo, checkoutRepo, orderRepo, cfg.Lifecycle.CheckoutTTL, logger),
		sweeper.NewOrderCancelJob(orderRepo, orderService, cfg.Lifecycle.OrderPaymentTTL),
		sweeper.NewPaymentReminderJob(orderRepo, notifier, cfg.Lifecycle.PaymentReminderAfter, logger),
		sweeper.NewFinalReminderJob(orderRepo, notifier, cfg.Lifecycle.FinalReminderWindowStart, cfg.Lifecycle.FinalReminderWindowEnd, logger),
		sweeper.NewPaymentAlertJob(paymentRepo, orderRepo, notifier, logger),
	}
	scheduler := sweeper.NewScheduler(jobs, cfg.Lifecycle.SweepInterval, sweeper.RetryPolicy{
		MaxAttempts: cfg.Lifecycle.SweepMaxAttempts,
		Backoff:     cfg.Lifecycle.SweepRetryBackoff,
		Retryable:   model.IsTransient,
	}, logger)
	go scheduler.Start(ctx)

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(productRepo, logger)
	cartHandler := handler.NewCartHandler(cartService, logger)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, cartService, logger)
	orderHandler := handler.NewOrderHandler(orderService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)

	// Initialize router
	mux := router.New(productHandler, cartHandler, checkoutHandler, orderHandler, paymentHandler, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Stop the sweeper before closing the listener
		cancel()

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

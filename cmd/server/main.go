package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/skadi/internal"
	"github.com/dukerupert/skadi/internal/billing"
	"github.com/dukerupert/skadi/internal/handler/api"
	"github.com/dukerupert/skadi/internal/handler/webhook"
	"github.com/dukerupert/skadi/internal/middleware"
	"github.com/dukerupert/skadi/internal/plan"
	"github.com/dukerupert/skadi/internal/postgres"
	"github.com/dukerupert/skadi/internal/router"
	"github.com/dukerupert/skadi/internal/routes"
	"github.com/dukerupert/skadi/internal/service"
	"github.com/dukerupert/skadi/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize error tracking
	sentryCleanup, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Env,
		Release:     cfg.Sentry.Release,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize subscription store
	store := postgres.NewSubscriptionService(pool)

	// Load plan catalog
	logger.Info("Loading plan catalog...", "path", cfg.Billing.PlanCatalogPath)
	catalog, err := plan.LoadFile(cfg.Billing.PlanCatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load plan catalog: %w", err)
	}
	logger.Info("Plan catalog loaded")

	// Initialize Stripe billing gateway
	gateway := billing.NewStripeGateway(cfg.Stripe.SecretKey)
	logger.Info("Stripe billing gateway initialized")

	// Initialize business metrics
	telemetry.InitBusinessMetrics("skadi")

	// Initialize the reconciler. The server binary runs without lifecycle
	// hooks; embedding applications supply their own.
	owners := api.NewOwnerRegistry()
	reconciler := service.NewReconciler(gateway, catalog, owners, nil, service.Config{
		Prorate:   cfg.Billing.Prorate,
		FreeTrial: cfg.Billing.FreeTrial,
	}, logger)

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	apiDeps := routes.APIDeps{
		SubscriptionHandler: api.NewSubscriptionHandler(store, reconciler, owners, logger),
	}

	eventRouter := webhook.NewEventRouter(store, nil, gateway)
	stripeWebhookHandler := webhook.NewStripeHandler(gateway, eventRouter, webhook.StripeWebhookConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	webhookDeps := routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	// Initialize Prometheus metrics
	metrics := middleware.NewMetrics("skadi")

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		router.Logger(logger),
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Register route groups
	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)

	// ==========================================================================
	// Start server
	// ==========================================================================

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

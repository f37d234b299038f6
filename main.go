// Package main provides the main entry point for the Badgify badge platform
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/badgify/badgify-server/app/handlers"
	"github.com/badgify/badgify-server/app/middleware"
	"github.com/badgify/badgify-server/app/router"
	"github.com/badgify/badgify-server/app/scheduler"
	"github.com/badgify/badgify-server/app/services"
	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Badgify application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	assignmentRepo := repository.NewBadgeAssignmentRepository(db)
	runRepo := repository.NewResolutionRunRepository(db)
	jobRepo := repository.NewResolutionJobRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize platform clients; the catalog client gets a Redis snapshot
	// cache when Redis is available
	catalogClient := services.NewCatalogClient(cfg.Catalog)
	if rc != nil {
		catalogClient = services.NewCachedCatalogClient(catalogClient, rc, cfg.Catalog.CacheTTL)
	}
	billingClient := services.NewBillingClient(cfg.Billing)

	// Initialize flows
	billingFlow := businessflow.NewBillingFlow(
		tenantRepo,
		subscriptionRepo,
		auditRepo,
		billingClient,
		cfg.Billing,
		db,
	)

	tenantFlow := businessflow.NewTenantFlow(
		tenantRepo,
		auditRepo,
		billingFlow,
		tokenService,
		db,
	)

	badgeFlow := businessflow.NewBadgeFlow(
		tenantRepo,
		badgeRepo,
		assignmentRepo,
		auditRepo,
		db,
	)

	assignmentFlow := businessflow.NewAssignmentFlow(
		tenantRepo,
		badgeRepo,
		assignmentRepo,
		runRepo,
		jobRepo,
		auditRepo,
		catalogClient,
		cfg.Catalog,
		db,
	)

	catalogFlow := businessflow.NewCatalogFlow(
		tenantRepo,
		catalogClient,
		cfg.Catalog,
	)

	webhookFlow := businessflow.NewWebhookFlow(
		tenantRepo,
		badgeRepo,
		assignmentRepo,
		runRepo,
		jobRepo,
		subscriptionRepo,
		auditRepo,
		rc,
		db,
	)

	// Initialize handlers
	tenantHandler := handlers.NewTenantHandler(tenantFlow)
	badgeHandler := handlers.NewBadgeHandler(badgeFlow)
	assignmentHandler := handlers.NewAssignmentHandler(assignmentFlow)
	billingHandler := handlers.NewBillingHandler(billingFlow)
	catalogHandler := handlers.NewCatalogHandler(catalogFlow)
	webhookHandler := handlers.NewWebhookHandler(webhookFlow)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	subscriptionGuard := middleware.NewSubscriptionGuard(billingFlow)

	// Initialize router
	appRouter := router.NewFiberRouter(
		tenantHandler,
		badgeHandler,
		assignmentHandler,
		billingHandler,
		catalogHandler,
		webhookHandler,
		authMiddleware,
		subscriptionGuard,
		cfg.Server.EnableMetrics,
	)

	// Start background workers
	sweeper := scheduler.NewTrialSweeper(billingFlow, cfg.Scheduler)
	stopFuncs = append(stopFuncs, sweeper.Start(context.Background()))

	worker := scheduler.NewResolutionWorker(jobRepo, assignmentFlow, cfg.Scheduler)
	stopFuncs = append(stopFuncs, worker.Start(context.Background()))

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/badgify/badgify-server/app/dto"
	"github.com/badgify/badgify-server/app/handlers"
	"github.com/badgify/badgify-server/app/middleware"
	"github.com/badgify/badgify-server/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	tenantHandler     handlers.TenantHandlerInterface
	badgeHandler      handlers.BadgeHandlerInterface
	assignmentHandler handlers.AssignmentHandlerInterface
	billingHandler    handlers.BillingHandlerInterface
	catalogHandler    handlers.CatalogHandlerInterface
	webhookHandler    handlers.WebhookHandlerInterface
	authMiddleware    *middleware.AuthMiddleware
	subscriptionGuard *middleware.SubscriptionGuard
	enableMetrics     bool
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	tenantHandler handlers.TenantHandlerInterface,
	badgeHandler handlers.BadgeHandlerInterface,
	assignmentHandler handlers.AssignmentHandlerInterface,
	billingHandler handlers.BillingHandlerInterface,
	catalogHandler handlers.CatalogHandlerInterface,
	webhookHandler handlers.WebhookHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	subscriptionGuard *middleware.SubscriptionGuard,
	enableMetrics bool,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Badgify API",
		ServerHeader: "Badgify",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:               app,
		tenantHandler:     tenantHandler,
		badgeHandler:      badgeHandler,
		assignmentHandler: assignmentHandler,
		billingHandler:    billingHandler,
		catalogHandler:    catalogHandler,
		webhookHandler:    webhookHandler,
		authMiddleware:    authMiddleware,
		subscriptionGuard: subscriptionGuard,
		enableMetrics:     enableMetrics,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// Prometheus scrape endpoint
	if r.enableMetrics {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Webhook deliveries come from the platform, unauthenticated and outside
	// the per-IP rate limits; the platform redelivers on non-2xx
	r.app.Post("/webhooks", r.webhookHandler.Receive)

	// Apply general rate limiting to all API routes (aligned with nginx)
	api.Use(limiter.New(limiter.Config{
		Max:        2000,            // Maximum 2000 requests (matches nginx api zone)
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks
			return c.Path() == "/api/v1/health"
		},
	}))

	// Tenant installation with stricter rate limiting
	tenants := api.Group("/tenants")
	tenants.Use(limiter.New(limiter.Config{
		Max:        20,              // Maximum 20 requests
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	}))

	// Installation is the only unauthenticated API endpoint; it issues the token
	tenants.Post("/install", r.tenantHandler.Install)
	tenants.Get("/me", r.authMiddleware.Authenticate(), r.tenantHandler.GetTenant)

	authenticate := r.authMiddleware.Authenticate()
	requireSubscription := r.subscriptionGuard.RequireActiveSubscription()

	// Billing endpoints are authenticated but never behind the guard, so a
	// lapsed tenant can still subscribe and check their state
	billing := api.Group("/billing", authenticate)
	billing.Get("/subscription", r.billingHandler.GetSubscription)
	billing.Post("/subscribe", r.billingHandler.Subscribe)
	billing.Post("/activate", r.billingHandler.ActivateSubscription)
	billing.Post("/cancel", r.billingHandler.CancelSubscription)

	// Badge management requires an authorized subscription
	badges := api.Group("/badges", authenticate, requireSubscription)
	badges.Post("/", r.badgeHandler.CreateBadge)
	badges.Get("/", r.badgeHandler.ListBadges)
	badges.Post("/preview-rule", r.assignmentHandler.PreviewRule)
	badges.Get("/:uuid", r.badgeHandler.GetBadge)
	badges.Put("/:uuid", r.badgeHandler.UpdateBadge)
	badges.Delete("/:uuid", r.badgeHandler.DeleteBadge)
	badges.Post("/:uuid/toggle", r.badgeHandler.ToggleBadge)
	badges.Put("/:uuid/rule", r.assignmentHandler.UpdateRule)
	badges.Post("/:uuid/rebuild", r.assignmentHandler.RebuildAssignments)
	badges.Get("/:uuid/assignments", r.assignmentHandler.ListAssignments)
	badges.Post("/:uuid/assignments", r.assignmentHandler.AssignManual)
	badges.Get("/:uuid/runs", r.assignmentHandler.ListResolutionRuns)
	badges.Get("/:uuid/export", r.assignmentHandler.ExportAssignments)

	// Catalog browsing for the rule builder
	catalog := api.Group("/catalog", authenticate, requireSubscription)
	catalog.Get("/products", r.catalogHandler.ListProducts)
	catalog.Get("/collections", r.catalogHandler.ListCollections)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' https:; connect-src 'self' https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"https://badgify.app",
			"https://api.badgify.app",
			"https://admin.badgify.app",
		},
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// Skip compression for binary downloads
			contentType := c.Get("Content-Type")
			return strings.Contains(contentType, "image/") ||
				strings.Contains(contentType, "spreadsheetml")
		},
	}))

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/v1/health"
		},
	}))

	// Prometheus HTTP metrics
	if r.enableMetrics {
		r.app.Use(middleware.Metrics())
	}

	// Response metadata headers
	r.app.Use(func(c fiber.Ctx) error {
		c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
		c.Set("Server", "Badgify")
		return c.Next()
	})

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "badgify-api",
		},
	})
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

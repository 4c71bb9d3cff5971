package routes

import (
	"time"

	"bloodbank/internal/adapters/http/handlers"
	"bloodbank/internal/adapters/http/middleware"
	"bloodbank/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, c *Container, cfg *config.Config, registry *prometheus.Registry, logger *zap.Logger) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.AppMode, c.Checks)
	authHandler := handlers.NewAuthHandler(c.Auth, cfg, logger)
	staffHandler := handlers.NewStaffHandler(c.Staff, logger)
	unitHandler := handlers.NewUnitHandler(c.Units, logger)
	reservationHandler := handlers.NewReservationHandler(c.Allocation, logger)
	requestHandler := handlers.NewRequestHandler(c.Requests, logger)
	donorHandler := handlers.NewDonorHandler(c.Donors, logger)
	inventoryHandler := handlers.NewInventoryHandler(c.Inventory, c.Sweep, c.Donors, logger)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	if registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	// Auth routes (public)
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Post("/refresh", authHandler.RefreshToken)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", middleware.AuthMiddleware(c.Auth), authHandler.Me)

	// Shelf life policy is static reference data
	apiV1.Get("/reference/shelf-life", middleware.CacheControl(time.Hour), inventoryHandler.ShelfLife)

	// Everything below needs a staff token
	protected := func(prefix string, extra ...fiber.Handler) fiber.Router {
		guards := []fiber.Handler{middleware.AuthMiddleware(c.Auth), middleware.StaffOrAdmin(), middleware.NoCacheHeaders()}
		return apiV1.Group(prefix, append(guards, extra...)...)
	}

	setupUnitRoutes(protected("/units"), unitHandler)
	setupReservationRoutes(protected("/reservations"), reservationHandler)
	setupRequestRoutes(protected("/requests"), requestHandler)
	setupDonorRoutes(protected("/donors"), donorHandler)
	setupInventoryRoutes(protected("/inventory"), inventoryHandler)

	// Staff management (Admin only)
	staffRoutes := protected("/staff", middleware.AdminOnly())
	staffRoutes.Get("/", staffHandler.List)
	staffRoutes.Post("/", staffHandler.Create)
}

// setupUnitRoutes configures blood unit routes
func setupUnitRoutes(router fiber.Router, handler *handlers.UnitHandler) {
	router.Post("/", handler.Create)
	router.Get("/", handler.List)
	router.Get("/export", handler.Export)
	router.Get("/:number", handler.Get)
	router.Get("/:number/history", handler.History)
	router.Patch("/:number/status", handler.Transition)
	router.Post("/:number/discard", handler.Discard)
}

// setupReservationRoutes configures allocation routes
func setupReservationRoutes(router fiber.Router, handler *handlers.ReservationHandler) {
	router.Post("/", handler.Reserve)
	router.Get("/:request_id", handler.Get)
	router.Post("/:request_id/commit", handler.Commit)
	router.Post("/:request_id/release", handler.Release)
}

// setupRequestRoutes configures hospital request routes
func setupRequestRoutes(router fiber.Router, handler *handlers.RequestHandler) {
	router.Post("/", handler.Create)
	router.Get("/", handler.List)
	router.Get("/:id", handler.Get)
	router.Put("/:id/approve", handler.Approve)
	router.Put("/:id/fulfill", handler.Fulfill)
	router.Put("/:id/reject", handler.Reject)
	router.Put("/:id/cancel", handler.Cancel)
}

// setupDonorRoutes configures donor routes
func setupDonorRoutes(router fiber.Router, handler *handlers.DonorHandler) {
	router.Post("/", handler.Register)
	router.Get("/", handler.List)
	router.Get("/:id", handler.Get)
	router.Post("/:id/donations", handler.RecordDonation)
	router.Post("/:id/collections", handler.Collect)
}

// setupInventoryRoutes configures dashboard and maintenance routes
func setupInventoryRoutes(router fiber.Router, handler *handlers.InventoryHandler) {
	router.Get("/summary", handler.Summary)
	router.Post("/sweep", middleware.AdminOnly(), handler.Sweep)
	router.Post("/eligibility", middleware.AdminOnly(), handler.RestoreEligibility)
}

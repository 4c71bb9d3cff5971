package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloodbank/internal/adapters/http/middleware"
	"bloodbank/internal/adapters/http/routes"
	"bloodbank/internal/config"
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/clock"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "bloodbank/docs" // Swagger docs
)

// @title Blood Bank Inventory API
// @version 1.0
// @description Blood unit lifecycle, expiry tracking and allocation

// @contact.name API Support

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// run wires and serves the API. Every failure is returned so deferred cleanup still runs.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	shutdownTracing, err := config.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("failed to set up tracing", zap.Error(err))
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	// Database only for the mysql driver
	var db *gorm.DB
	if !cfg.UsesMemoryStore() {
		db, err = config.ConnectDatabase(cfg)
		if err != nil {
			logger.Error("failed to connect to database", zap.Error(err))
			return fmt.Errorf("connect database: %w", err)
		}
		defer config.CloseDatabase()

		if err := config.Migrate(db); err != nil {
			logger.Error("failed to migrate database", zap.Error(err))
			return fmt.Errorf("migrate database: %w", err)
		}
	} else {
		log.Println("⚠️ STORAGE_DRIVER=memory: data is lost on restart")
	}

	redisClient, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", zap.Error(err))
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("✅ Redis connected, allocation locks are shared")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	container := routes.NewContainer(cfg, routes.Infra{
		DB:       db,
		Redis:    redisClient,
		Logger:   logger,
		Registry: registry,
		Clock:    clock.System(),
	})
	defer container.Notification.Close()

	if err := config.NewSeeder(container.Staff, container.Donors).Run(ctx, cfg); err != nil {
		logger.Warn("seeding failed", zap.Error(err))
	}

	// Scheduled expiry sweep and eligibility restore
	cronService := services.NewCronService(container.Sweep, container.Donors, logger.Named("cron"))
	defer cronService.Stop()
	if err := cronService.Start(cfg.Inventory.SweepCron, cfg.Inventory.EligibilityCron); err != nil {
		logger.Error("failed to schedule jobs", zap.Error(err))
		return fmt.Errorf("schedule jobs: %w", err)
	}

	reaper := services.NewReservationReaper(container.Allocation, cfg.Inventory.ReaperInterval, logger.Named("reaper"))
	reaper.Start()
	defer reaper.Stop()

	app := fiber.New(fiber.Config{
		AppName:      "Blood Bank Inventory API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	middleware.Setup(app, cfg, logger.Named("http"))
	routes.Setup(app, container, cfg, registry, logger)

	go gracefulShutdown(app)

	log.Printf("🚀 Server starting on port %s [MODE: %s, STORAGE: %s]", cfg.Port, cfg.AppMode, cfg.StorageDriver)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
	log.Println("✅ Server stopped gracefully")
	return nil
}

// gracefulShutdown stops accepting requests on SIGINT or SIGTERM
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
}

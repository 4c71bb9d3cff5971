package routes

import (
	"context"
	"time"

	"bloodbank/internal/adapters/http/handlers"
	"bloodbank/internal/adapters/lock"
	"bloodbank/internal/adapters/persistence/memory"
	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/config"
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/clock"
	"bloodbank/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Infra is what the process opened before wiring: a database for the mysql
// driver, an optional Redis, the logger and the metrics registry.
type Infra struct {
	DB       *gorm.DB
	Redis    *config.RedisClient
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Clock    clock.Clock
}

// Container holds the wired services
type Container struct {
	Units        *services.UnitService
	Sweep        *services.SweepService
	Allocation   *services.AllocationService
	Donors       *services.DonorService
	Requests     *services.RequestService
	Inventory    *services.InventoryService
	Auth         *services.AuthService
	Staff        *services.StaffService
	Notification *services.NotificationService
	Checks       map[string]handlers.HealthCheck
}

type stores struct {
	units         repositories.UnitRepository
	reservations  repositories.ReservationRepository
	donors        repositories.DonorRepository
	requests      repositories.RequestRepository
	users         repositories.UserRepository
	refreshTokens repositories.RefreshTokenRepository
}

// NewContainer picks the stores for cfg.StorageDriver and builds every service on them
func NewContainer(cfg *config.Config, infra Infra) *Container {
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var st stores
	if cfg.UsesMemoryStore() || infra.DB == nil {
		st = stores{
			units:         memory.NewUnitRepository(),
			reservations:  memory.NewReservationRepository(),
			donors:        memory.NewDonorRepository(),
			requests:      memory.NewRequestRepository(),
			users:         memory.NewUserRepository(),
			refreshTokens: memory.NewRefreshTokenRepository(),
		}
	} else {
		st = stores{
			units:         repositories.NewUnitRepository(infra.DB),
			reservations:  repositories.NewReservationRepository(infra.DB),
			donors:        repositories.NewDonorRepository(infra.DB),
			requests:      repositories.NewRequestRepository(infra.DB),
			users:         repositories.NewUserRepository(infra.DB),
			refreshTokens: repositories.NewRefreshTokenRepository(infra.DB),
		}
	}

	// allocation is serialised across instances only when they share Redis
	var locker lock.Locker = lock.NewLocal()
	checks := map[string]handlers.HealthCheck{}
	if infra.DB != nil {
		checks["database"] = config.DatabaseHealth
	}
	if infra.Redis != nil {
		locker = lock.NewRedis(infra.Redis.Client, lock.WithLockLogger(logger.Named("lock")))
		checks["redis"] = infra.Redis.Health
	}

	var m *metrics.Metrics
	if infra.Registry != nil {
		m = metrics.New(infra.Registry)
	}

	notification := services.NewNotificationService(cfg.Notify.WebhookURL, logger.Named("events"))
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithClock(infra.Clock),
		services.WithMetrics(m),
		services.WithEvents(notification),
	}

	units := services.NewUnitService(st.units, st.donors, opts...)
	allocation := services.NewAllocationService(units, st.reservations, locker, cfg.Inventory.ReservationHold, opts...)

	return &Container{
		Units:      units,
		Sweep:      services.NewSweepService(units, allocation, opts...),
		Allocation: allocation,
		Donors:     services.NewDonorService(st.donors, units, services.DeferralRule{Period: cfg.Inventory.DonorDeferral}, opts...),
		Requests:   services.NewRequestService(st.requests, allocation, opts...),
		Inventory:  services.NewInventoryService(st.units, st.reservations, cfg.Inventory.ExpiringSoon, opts...),
		Auth: services.NewAuthService(st.users, st.refreshTokens, services.TokenSettings{
			Secret:        cfg.JWT.Secret,
			RefreshSecret: cfg.JWT.RefreshSecret,
			AccessTTL:     cfg.JWT.AccessTokenTTL,
			RefreshTTL:    cfg.JWT.RefreshTokenTTL,
		}, opts...),
		Staff:        services.NewStaffService(st.users, opts...),
		Notification: notification,
		Checks:       checks,
	}
}

// Ping runs every health check once, for startup
func (c *Container) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, check := range c.Checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

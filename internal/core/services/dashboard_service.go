package services

import (
	"context"
	"time"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"
)

// InventoryService builds the stock dashboard
type InventoryService struct {
	units          repositories.UnitRepository
	reservations   repositories.ReservationRepository
	expiringWindow time.Duration
	options
}

// NewInventoryService creates a new inventory service. expiringWindow is how far
// ahead a unit counts as expiring soon.
func NewInventoryService(units repositories.UnitRepository, reservations repositories.ReservationRepository, expiringWindow time.Duration, opts ...Option) *InventoryService {
	return &InventoryService{
		units:          units,
		reservations:   reservations,
		expiringWindow: expiringWindow,
		options:        newOptions(opts),
	}
}

// ============================================================
// Inventory summary
// ============================================================

// InventorySummary represents the stock dashboard
type InventorySummary struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Unit counts
	TotalUnits  int64                       `json:"total_units"`
	ByStatus    map[domain.UnitStatus]int64 `json:"by_status"`
	AvailableBy map[domain.BloodType]int64  `json:"available_by_blood_type"`
	Breakdown   []repositories.StockCount   `json:"breakdown"`

	// Expiry pressure
	ExpiringSoon       int64 `json:"expiring_soon"`
	ExpiringWindowDays int   `json:"expiring_window_days"`

	ActiveReservations int64              `json:"active_reservations"`
	ShelfLife          []domain.ShelfLife `json:"shelf_life"`
}

// Summary returns counts per blood type, component and status
func (s *InventoryService) Summary(ctx context.Context) (*InventorySummary, error) {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Summary")
	defer span.End()

	now := s.clock.Now()
	breakdown, err := s.units.CountByGroup(ctx)
	if err != nil {
		return nil, err
	}

	data := &InventorySummary{
		GeneratedAt:        now,
		ByStatus:           make(map[domain.UnitStatus]int64),
		AvailableBy:        make(map[domain.BloodType]int64),
		Breakdown:          breakdown,
		ExpiringWindowDays: int(s.expiringWindow / (24 * time.Hour)),
		ShelfLife:          domain.ShelfLives(),
	}
	for _, st := range domain.UnitStatuses() {
		data.ByStatus[st] = 0
	}
	for _, bt := range domain.BloodTypes() {
		data.AvailableBy[bt] = 0
	}
	for _, row := range breakdown {
		data.TotalUnits += row.Count
		data.ByStatus[row.Status] += row.Count
		if row.Status == domain.StatusAvailable {
			data.AvailableBy[row.BloodType] += row.Count
		}
	}

	if data.ExpiringSoon, err = s.units.CountExpiringBetween(ctx, now, now.Add(s.expiringWindow)); err != nil {
		return nil, err
	}
	if data.ActiveReservations, err = s.reservations.Count(ctx); err != nil {
		return nil, err
	}
	return data, nil
}

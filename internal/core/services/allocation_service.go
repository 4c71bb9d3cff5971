package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bloodbank/internal/adapters/lock"
	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const maxReserveAttempts = 3

// Compatibility lists the blood types that may be issued for a requested type
type Compatibility interface {
	Candidates(requested domain.BloodType) []domain.BloodType
}

// ExactMatch issues only the requested blood type
type ExactMatch struct{}

func (ExactMatch) Candidates(requested domain.BloodType) []domain.BloodType {
	return []domain.BloodType{requested}
}

// AllocationService reserves, commits and releases units for hospital requests
type AllocationService struct {
	units         *UnitService
	reservations  repositories.ReservationRepository
	locker        lock.Locker
	compat        Compatibility
	hold          time.Duration
	onHoldExpired func(ctx context.Context, requestID string)
	options
}

// NewAllocationService creates a new allocation service. hold is how long a
// reservation keeps its units before they are released automatically.
func NewAllocationService(units *UnitService, reservations repositories.ReservationRepository, locker lock.Locker, hold time.Duration, opts ...Option) *AllocationService {
	return &AllocationService{
		units:        units,
		reservations: reservations,
		locker:       locker,
		compat:       ExactMatch{},
		hold:         hold,
		options:      newOptions(opts),
	}
}

// UseCompatibility swaps the blood type matching rule
func (s *AllocationService) UseCompatibility(c Compatibility) {
	if c != nil {
		s.compat = c
	}
}

// OnHoldExpired registers a callback run after a hold is released by the
// reaper or broken because one of its units expired
func (s *AllocationService) OnHoldExpired(fn func(ctx context.Context, requestID string)) {
	s.onHoldExpired = fn
}

// ReserveInput represents an allocation request
type ReserveInput struct {
	RequestID     string `json:"request_id"`
	BloodType     string `json:"blood_type"`
	ComponentType string `json:"component_type"`
	UnitsNeeded   int    `json:"units_needed"`
}

// Reserve holds exactly UnitsNeeded units for the request, oldest collection
// first, or holds nothing and reports the shortage.
func (s *AllocationService) Reserve(ctx context.Context, in ReserveInput) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "AllocationService.Reserve")
	defer span.End()

	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		return nil, domain.NewValidationError("request_id", "is required")
	}
	bloodType, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return nil, err
	}
	component := domain.ComponentWholeBlood
	if strings.TrimSpace(in.ComponentType) != "" {
		if component, err = domain.ParseComponentType(in.ComponentType); err != nil {
			return nil, err
		}
	}
	if in.UnitsNeeded <= 0 {
		return nil, domain.NewValidationError("units_needed", "must be positive")
	}
	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.String("blood_type", string(bloodType)),
		attribute.String("component_type", string(component)),
		attribute.Int("units_needed", in.UnitsNeeded),
	)

	if _, err := s.reservations.Get(ctx, requestID); err == nil {
		return nil, fmt.Errorf("%w: request %s already holds a reservation", domain.ErrConflict, requestID)
	} else if !errors.Is(err, repositories.ErrRecordNotFound) {
		return nil, err
	}

	types := s.candidateTypes(bloodType)
	unlock, err := s.lockGroups(ctx, types, component)
	if err != nil {
		return nil, fmt.Errorf("acquire allocation lock: %w", err)
	}
	defer unlock()

	var held []string
	now := s.clock.Now()
	for attempt := 1; ; attempt++ {
		picked, available, err := s.selectUnits(ctx, types, component, now, in.UnitsNeeded)
		if err != nil {
			return nil, err
		}
		if picked == nil {
			s.metrics.Reservation("insufficient")
			s.logger.Info("reservation refused",
				zap.String("request_id", requestID),
				zap.String("blood_type", string(bloodType)),
				zap.String("component_type", string(component)),
				zap.Int("requested", in.UnitsNeeded),
				zap.Int("available", available),
			)
			return nil, &domain.InsufficientStockError{
				BloodType:     bloodType,
				ComponentType: component,
				Requested:     in.UnitsNeeded,
				Available:     available,
			}
		}

		held, err = s.holdUnits(ctx, requestID, picked, now)
		if err == nil {
			break
		}
		s.rollback(ctx, requestID, held)
		// a unit changed between selection and hold, usually a concurrent sweep
		if attempt < maxReserveAttempts && (errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition)) {
			continue
		}
		s.metrics.Reservation("failed")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := &domain.Reservation{
		RequestID:     requestID,
		BloodType:     bloodType,
		ComponentType: component,
		UnitNumbers:   held,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.hold),
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		s.rollback(ctx, requestID, held)
		s.metrics.Reservation("failed")
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: request %s already holds a reservation", domain.ErrConflict, requestID)
		}
		return nil, err
	}

	s.metrics.Reservation("reserved")
	s.events.Publish(ctx, Event{
		Type:    EventReservationCreated,
		Subject: requestID,
		Data: map[string]interface{}{
			"unit_numbers": held,
			"expires_at":   res.ExpiresAt,
		},
		At: now,
	})
	s.logger.Info("units reserved",
		zap.String("request_id", requestID),
		zap.Strings("unit_numbers", held),
		zap.Time("hold_until", res.ExpiresAt),
	)
	return res, nil
}

func (s *AllocationService) candidateTypes(requested domain.BloodType) []domain.BloodType {
	types := s.compat.Candidates(requested)
	if len(types) == 0 {
		types = []domain.BloodType{requested}
	}
	types = append([]domain.BloodType(nil), types...)
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// lockGroups takes the (blood type, component) locks in sorted order
func (s *AllocationService) lockGroups(ctx context.Context, types []domain.BloodType, component domain.ComponentType) (func(), error) {
	unlocks := make([]func(), 0, len(types))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, bt := range types {
		unlock, err := s.locker.Lock(ctx, string(bt)+"|"+string(component))
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// selectUnits returns the need oldest allocatable units, or nil and the available count on a shortage
func (s *AllocationService) selectUnits(ctx context.Context, types []domain.BloodType, component domain.ComponentType, now time.Time, need int) ([]domain.BloodUnit, int, error) {
	var available int64
	for _, bt := range types {
		n, err := s.units.units.CountAllocatable(ctx, bt, component, now)
		if err != nil {
			return nil, 0, err
		}
		available += n
	}
	if available < int64(need) {
		return nil, int(available), nil
	}

	var pool []domain.BloodUnit
	for _, bt := range types {
		units, err := s.units.units.ListAllocatable(ctx, bt, component, now, need)
		if err != nil {
			return nil, 0, err
		}
		pool = append(pool, units...)
	}
	sort.Slice(pool, func(i, j int) bool {
		if !pool[i].CollectedAt.Equal(pool[j].CollectedAt) {
			return pool[i].CollectedAt.Before(pool[j].CollectedAt)
		}
		return pool[i].UnitNumber < pool[j].UnitNumber
	})
	if len(pool) < need {
		return nil, len(pool), nil
	}
	return pool[:need], int(available), nil
}

// holdUnits reserves each unit in turn and returns the ones it managed to hold
func (s *AllocationService) holdUnits(ctx context.Context, requestID string, picked []domain.BloodUnit, now time.Time) ([]string, error) {
	held := make([]string, 0, len(picked))
	for _, u := range picked {
		_, err := s.units.apply(ctx, u.UnitNumber, domain.StatusReserved, requestID, "reserved for request "+requestID,
			func(cur domain.BloodUnit) error {
				if !cur.Allocatable(now) {
					return fmt.Errorf("%w: unit %s is no longer allocatable", domain.ErrConflict, cur.UnitNumber)
				}
				return nil
			})
		if err != nil {
			return held, err
		}
		held = append(held, u.UnitNumber)
	}
	return held, nil
}

// rollback returns held units to available. It outlives a cancelled caller.
func (s *AllocationService) rollback(ctx context.Context, requestID string, held []string) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range held {
		if err := s.returnUnit(ctx, requestID, n, "reservation rolled back"); err != nil && !errors.Is(err, errSkip) {
			s.logger.Error("reservation rollback failed",
				zap.String("request_id", requestID),
				zap.String("unit_number", n),
				zap.Error(err),
			)
		}
	}
}

func (s *AllocationService) returnUnit(ctx context.Context, requestID, unitNumber, reason string) error {
	_, err := s.units.apply(ctx, unitNumber, domain.StatusAvailable, "", reason, func(cur domain.BloodUnit) error {
		if cur.Status != domain.StatusReserved || cur.ReservedFor != requestID {
			return errSkip
		}
		return nil
	})
	return err
}

// Get returns the active reservation of a request
func (s *AllocationService) Get(ctx context.Context, requestID string) (*domain.Reservation, error) {
	res, err := s.reservations.Get(ctx, requestID)
	if err != nil {
		return nil, notFound(err, "reservation", requestID)
	}
	return res, nil
}

// Commit marks every reserved unit as used. The reservation is gone afterwards,
// so a second commit or release reports NotFound.
func (s *AllocationService) Commit(ctx context.Context, requestID string) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "AllocationService.Commit")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	res, err := s.reservations.Claim(ctx, requestID)
	if err != nil {
		return nil, notFound(err, "reservation", requestID)
	}

	var errs []error
	for _, n := range res.UnitNumbers {
		_, err := s.units.apply(ctx, n, domain.StatusUsed, "", "issued for request "+requestID, func(cur domain.BloodUnit) error {
			if cur.Status != domain.StatusReserved || cur.ReservedFor != requestID {
				return fmt.Errorf("%w: unit %s is %s and no longer held by request %s", domain.ErrConflict, cur.UnitNumber, cur.Status, requestID)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	now := s.clock.Now()
	s.metrics.Reservation("committed")
	s.events.Publish(ctx, Event{
		Type:    EventReservationCommitted,
		Subject: requestID,
		Data:    map[string]interface{}{"unit_numbers": res.UnitNumbers},
		At:      now,
	})
	if len(errs) > 0 {
		err := fmt.Errorf("commit request %s: %w", requestID, errors.Join(errs...))
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("reservation committed with failures", zap.String("request_id", requestID), zap.Error(err))
		return res, err
	}
	s.logger.Info("reservation committed", zap.String("request_id", requestID), zap.Strings("unit_numbers", res.UnitNumbers))
	return res, nil
}

// Release returns every reserved unit to available
func (s *AllocationService) Release(ctx context.Context, requestID string) (*domain.Reservation, error) {
	return s.release(ctx, requestID, "released", EventReservationReleased)
}

func (s *AllocationService) release(ctx context.Context, requestID, reason, eventType string) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "AllocationService.Release")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", requestID))

	res, err := s.reservations.Claim(ctx, requestID)
	if err != nil {
		return nil, notFound(err, "reservation", requestID)
	}

	var errs []error
	for _, n := range res.UnitNumbers {
		if err := s.returnUnit(ctx, requestID, n, reason); err != nil && !errors.Is(err, errSkip) {
			errs = append(errs, err)
		}
	}

	s.metrics.Reservation("released")
	s.events.Publish(ctx, Event{
		Type:    eventType,
		Subject: requestID,
		Data:    map[string]interface{}{"unit_numbers": res.UnitNumbers},
		At:      s.clock.Now(),
	})
	if len(errs) > 0 {
		err := fmt.Errorf("release request %s: %w", requestID, errors.Join(errs...))
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("reservation released with failures", zap.String("request_id", requestID), zap.Error(err))
		return res, err
	}
	s.logger.Info("reservation released", zap.String("request_id", requestID), zap.String("reason", reason))
	return res, nil
}

// ReleaseExpiredHolds releases every reservation whose hold time has run out
func (s *AllocationService) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	expired, err := s.reservations.ListExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}

	released := 0
	for _, res := range expired {
		_, err := s.release(ctx, res.RequestID, "reservation hold expired", EventHoldExpired)
		if errors.Is(err, domain.ErrNotFound) {
			// committed or released since we listed it
			continue
		}
		if err != nil {
			s.logger.Warn("hold release incomplete", zap.String("request_id", res.RequestID), zap.Error(err))
		}
		released++
		s.metrics.HoldExpired()
		if s.onHoldExpired != nil {
			s.onHoldExpired(ctx, res.RequestID)
		}
	}
	return released, nil
}

// BreakHold releases the whole reservation of requestID because unit reached
// its expiry date, and reopens the request. It takes the unit's selection lock
// so it cannot run between a Reserve holding units and recording them.
// found is false when the request has no reservation.
func (s *AllocationService) BreakHold(ctx context.Context, requestID string, unit domain.BloodUnit) (found bool, err error) {
	unlock, err := s.lockGroups(ctx, []domain.BloodType{unit.BloodType}, unit.ComponentType)
	if err != nil {
		return false, fmt.Errorf("acquire allocation lock: %w", err)
	}
	_, err = s.release(ctx, requestID, "unit "+unit.UnitNumber+" reached its expiry date", EventHoldBroken)
	unlock()
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}

	s.logger.Warn("reservation broken by an expired unit",
		zap.String("request_id", requestID),
		zap.String("unit_number", unit.UnitNumber),
	)
	s.metrics.Reservation("broken")
	if s.onHoldExpired != nil {
		s.onHoldExpired(ctx, requestID)
	}
	return true, err
}

// HandleRequestStatusChange reacts to a request leaving approved: fulfilled
// commits the hold, rejected and cancelled release it.
func (s *AllocationService) HandleRequestStatusChange(ctx context.Context, requestID string, status domain.RequestStatus) error {
	switch status {
	case domain.RequestFulfilled:
		_, err := s.Commit(ctx, requestID)
		return err
	case domain.RequestRejected, domain.RequestCancelled:
		_, err := s.Release(ctx, requestID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

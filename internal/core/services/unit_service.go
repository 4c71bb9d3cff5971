package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	maxTransitionAttempts = 5
	maxUnitNumberAttempts = 3
	defaultFindPageSize   = 100
)

// DonorLookup is what unit creation needs to know about donors
type DonorLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Donor, error)
}

// UnitService owns the blood unit state machine
type UnitService struct {
	units         repositories.UnitRepository
	donors        DonorLookup
	findPageSize  int
	newUnitNumber func(collectedAt time.Time) string
	options
}

// NewUnitService creates a new unit service. donors may be nil to skip the donor check.
func NewUnitService(units repositories.UnitRepository, donors DonorLookup, opts ...Option) *UnitService {
	return &UnitService{
		units:         units,
		donors:        donors,
		findPageSize:  defaultFindPageSize,
		newUnitNumber: defaultUnitNumber,
		options:       newOptions(opts),
	}
}

// defaultUnitNumber is BU-<collection day>-<8 hex chars>
func defaultUnitNumber(collectedAt time.Time) string {
	return fmt.Sprintf("BU-%s-%s", collectedAt.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// CreateUnitInput represents unit registration input
type CreateUnitInput struct {
	DonorID         string          `json:"donor_id"`
	DonationID      string          `json:"donation_id,omitempty"`
	BloodType       string          `json:"blood_type"`
	ComponentType   string          `json:"component_type"`
	VolumeML        int             `json:"volume_ml"`
	CollectionDate  time.Time       `json:"collection_date"`
	StorageLocation string          `json:"storage_location"`
	LabResults      json.RawMessage `json:"lab_results,omitempty"`
}

// Create validates the input, derives the expiry date and stores the unit as available
func (s *UnitService) Create(ctx context.Context, in CreateUnitInput) (*domain.BloodUnit, error) {
	ctx, span := s.tracer.Start(ctx, "UnitService.Create")
	defer span.End()

	component, err := domain.ParseComponentType(in.ComponentType)
	if err != nil {
		s.logger.Warn("unit rejected", zap.String("component_type", in.ComponentType), zap.Error(err))
		return nil, err
	}
	bloodType, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := validateUnitInput(in, now); err != nil {
		return nil, err
	}

	if s.donors != nil {
		donor, err := s.donors.GetByID(ctx, in.DonorID)
		if err != nil {
			return nil, notFound(err, "donor", in.DonorID)
		}
		if donor.BloodType != bloodType {
			return nil, domain.NewValidationError("blood_type",
				fmt.Sprintf("%s does not match donor blood type %s", bloodType, donor.BloodType))
		}
	}

	expiresAt, err := domain.ExpiryDate(component, in.CollectionDate)
	if err != nil {
		return nil, err
	}

	unit := &domain.BloodUnit{
		DonorID:         in.DonorID,
		DonationID:      in.DonationID,
		BloodType:       bloodType,
		ComponentType:   component,
		VolumeML:        in.VolumeML,
		CollectedAt:     in.CollectionDate,
		ExpiresAt:       expiresAt,
		StorageLocation: strings.TrimSpace(in.StorageLocation),
		Status:          domain.StatusAvailable,
		LabResults:      in.LabResults,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; ; attempt++ {
		unit.UnitNumber = s.newUnitNumber(in.CollectionDate)
		err = s.units.Create(ctx, unit)
		if err == nil {
			break
		}
		if !errors.Is(err, repositories.ErrDuplicate) || attempt >= maxUnitNumberAttempts {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("store unit: %w", err)
		}
	}

	span.SetAttributes(attribute.String("unit_number", unit.UnitNumber))
	s.metrics.UnitCreated(string(component))
	s.events.Publish(ctx, Event{
		Type:    EventUnitCreated,
		Subject: unit.UnitNumber,
		Data: map[string]interface{}{
			"blood_type":     unit.BloodType,
			"component_type": unit.ComponentType,
			"expiry_date":    unit.ExpiresAt,
		},
		At: now,
	})
	s.logger.Info("unit created",
		zap.String("unit_number", unit.UnitNumber),
		zap.String("blood_type", string(unit.BloodType)),
		zap.String("component_type", string(unit.ComponentType)),
		zap.Time("expiry_date", unit.ExpiresAt),
	)
	return unit, nil
}

func validateUnitInput(in CreateUnitInput, now time.Time) error {
	if strings.TrimSpace(in.DonorID) == "" {
		return domain.NewValidationError("donor_id", "is required")
	}
	if in.VolumeML <= 0 {
		return domain.NewValidationError("volume_ml", "must be positive")
	}
	if in.CollectionDate.IsZero() {
		return domain.NewValidationError("collection_date", "is required")
	}
	if in.CollectionDate.After(now) {
		return domain.NewValidationError("collection_date", "must not be in the future")
	}
	if strings.TrimSpace(in.StorageLocation) == "" {
		return domain.NewValidationError("storage_location", "is required")
	}
	if len(in.LabResults) > 0 && !json.Valid(in.LabResults) {
		return domain.NewValidationError("lab_results", "must be valid JSON")
	}
	return nil
}

// Transition moves a unit that is not held by a reservation. Reserved units
// leave their reservation through commit or release only, and no unit is
// marked expired before its expiry date.
func (s *UnitService) Transition(ctx context.Context, unitNumber string, target domain.UnitStatus) (*domain.BloodUnit, error) {
	if !target.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unsupported status %q", target))
	}
	if target == domain.StatusReserved {
		return nil, domain.NewValidationError("status", "units are reserved through an allocation request")
	}
	return s.apply(ctx, unitNumber, target, "", "manual", func(cur domain.BloodUnit) error {
		if !cur.Status.CanTransitionTo(target) {
			return nil
		}
		if cur.Status == domain.StatusReserved {
			return fmt.Errorf("%w: unit %s is held by request %s", domain.ErrConflict, cur.UnitNumber, cur.ReservedFor)
		}
		if target == domain.StatusExpired && !cur.ExpiredAt(s.clock.Now()) {
			return fmt.Errorf("%w: unit %s does not expire until %s", domain.ErrConflict, cur.UnitNumber, cur.ExpiresAt.Format(time.DateOnly))
		}
		return nil
	})
}

// Discard retires an available or expired unit
func (s *UnitService) Discard(ctx context.Context, unitNumber string) (*domain.BloodUnit, error) {
	return s.Transition(ctx, unitNumber, domain.StatusDiscard)
}

// errSkip tells apply's caller the unit no longer needs the change
var errSkip = errors.New("transition no longer applies")

// apply runs one guarded compare-and-swap, re-reading and retrying on version conflicts.
// guard sees the freshly read unit and may veto the change.
func (s *UnitService) apply(ctx context.Context, unitNumber string, target domain.UnitStatus, reservedFor, reason string, guard func(domain.BloodUnit) error) (*domain.BloodUnit, error) {
	ctx, span := s.tracer.Start(ctx, "UnitService.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("unit_number", unitNumber), attribute.String("to", string(target)))

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		unit, err := s.units.GetByNumber(ctx, unitNumber)
		if err != nil {
			return nil, notFound(err, "unit", unitNumber)
		}
		if guard != nil {
			if err := guard(*unit); err != nil {
				return nil, err
			}
		}
		if err := domain.CheckTransition(unitNumber, unit.Status, target); err != nil {
			return nil, err
		}

		now := s.clock.Now()
		updated, err := s.units.CompareAndSwap(ctx, domain.StatusChange{
			UnitNumber:  unitNumber,
			Version:     unit.Version,
			From:        unit.Status,
			To:          target,
			ReservedFor: reservedFor,
			Reason:      reason,
			At:          now,
		})
		if errors.Is(err, repositories.ErrVersionConflict) {
			s.metrics.TransitionRetried()
			continue
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, notFound(err, "unit", unitNumber)
		}

		s.metrics.Transition(string(unit.Status), string(target))
		s.events.Publish(ctx, Event{
			Type:    EventUnitTransitioned,
			Subject: unitNumber,
			Data: map[string]interface{}{
				"from":   unit.Status,
				"to":     target,
				"reason": reason,
			},
			At: now,
		})
		s.logger.Debug("unit transitioned",
			zap.String("unit_number", unitNumber),
			zap.String("from", string(unit.Status)),
			zap.String("to", string(target)),
			zap.String("reason", reason),
		)
		return updated, nil
	}

	return nil, fmt.Errorf("%w: unit %s kept changing underneath the transition", domain.ErrConflict, unitNumber)
}

// Get returns one unit by number
func (s *UnitService) Get(ctx context.Context, unitNumber string) (*domain.BloodUnit, error) {
	unit, err := s.units.GetByNumber(ctx, unitNumber)
	if err != nil {
		return nil, notFound(err, "unit", unitNumber)
	}
	return unit, nil
}

// History returns the applied transitions of a unit, oldest first
func (s *UnitService) History(ctx context.Context, unitNumber string) ([]domain.UnitHistory, error) {
	if _, err := s.Get(ctx, unitNumber); err != nil {
		return nil, err
	}
	return s.units.History(ctx, unitNumber)
}

// Find streams every unit matching filter in unit number order. The sequence
// pages through the store lazily and can be ranged over again from the start.
func (s *UnitService) Find(ctx context.Context, filter domain.UnitFilter) iter.Seq2[domain.BloodUnit, error] {
	return func(yield func(domain.BloodUnit, error) bool) {
		after := ""
		for {
			page, err := s.units.ListAfter(ctx, filter, after, s.findPageSize)
			if err != nil {
				yield(domain.BloodUnit{}, err)
				return
			}
			for _, u := range page {
				if !yield(u, nil) {
					return
				}
			}
			if len(page) < s.findPageSize {
				return
			}
			after = page[len(page)-1].UnitNumber
		}
	}
}

// Page returns one offset page of units plus the total match count
func (s *UnitService) Page(ctx context.Context, filter domain.UnitFilter, offset, limit int) ([]domain.BloodUnit, int64, error) {
	return s.units.Page(ctx, filter, offset, limit)
}

// NewUnitFilter parses optional query values into a filter
func NewUnitFilter(bloodType, componentType, status string) (domain.UnitFilter, error) {
	var f domain.UnitFilter
	var err error
	if strings.TrimSpace(bloodType) != "" {
		if f.BloodType, err = domain.ParseBloodType(bloodType); err != nil {
			return f, err
		}
	}
	if strings.TrimSpace(componentType) != "" {
		if f.ComponentType, err = domain.ParseComponentType(componentType); err != nil {
			return f, err
		}
	}
	if strings.TrimSpace(status) != "" {
		if f.Status, err = domain.ParseUnitStatus(status); err != nil {
			return f, err
		}
	}
	return f, nil
}

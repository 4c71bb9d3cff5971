package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EligibilityRule decides when an ineligible donor may donate again
type EligibilityRule interface {
	Eligible(donor domain.Donor, now time.Time) bool
}

// DeferralRule restores eligibility once Period has passed since the last donation.
// A zero Period never restores anyone.
type DeferralRule struct {
	Period time.Duration
}

func (r DeferralRule) Eligible(donor domain.Donor, now time.Time) bool {
	if r.Period <= 0 {
		return false
	}
	if donor.LastDonationDate == nil {
		return true
	}
	return !now.Before(donor.LastDonationDate.Add(r.Period))
}

// DonorService tracks donor eligibility and records donations
type DonorService struct {
	donors repositories.DonorRepository
	units  *UnitService
	rule   EligibilityRule
	options
}

// NewDonorService creates a new donor service. units may be nil when collection is not offered.
func NewDonorService(donors repositories.DonorRepository, units *UnitService, rule EligibilityRule, opts ...Option) *DonorService {
	return &DonorService{
		donors:  donors,
		units:   units,
		rule:    rule,
		options: newOptions(opts),
	}
}

// RegisterDonorInput represents donor registration input
type RegisterDonorInput struct {
	FullName  string `json:"full_name"`
	Phone     string `json:"phone"`
	BloodType string `json:"blood_type"`
}

// Register adds an eligible donor
func (s *DonorService) Register(ctx context.Context, in RegisterDonorInput) (*domain.Donor, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, domain.NewValidationError("full_name", "is required")
	}
	bloodType, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	donor := &domain.Donor{
		ID:         uuid.NewString(),
		FullName:   name,
		Phone:      strings.TrimSpace(in.Phone),
		BloodType:  bloodType,
		IsEligible: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.donors.Create(ctx, donor); err != nil {
		return nil, err
	}
	s.logger.Info("donor registered", zap.String("donor_id", donor.ID), zap.String("blood_type", string(bloodType)))
	return donor, nil
}

// Get returns a donor by id
func (s *DonorService) Get(ctx context.Context, id string) (*domain.Donor, error) {
	donor, err := s.donors.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "donor", id)
	}
	return donor, nil
}

// List returns a page of donors
func (s *DonorService) List(ctx context.Context, offset, limit int) ([]domain.Donor, int64, error) {
	return s.donors.List(ctx, offset, limit)
}

// RecordDonation accepts a donation from an eligible donor. The donor's last
// donation date, total and eligibility change together or not at all.
func (s *DonorService) RecordDonation(ctx context.Context, donorID string, donatedAt time.Time, volumeML int) (*domain.Donation, *domain.Donor, error) {
	ctx, span := s.tracer.Start(ctx, "DonorService.RecordDonation")
	defer span.End()
	span.SetAttributes(attribute.String("donor_id", donorID))

	now := s.clock.Now()
	if err := validateDonation(donatedAt, volumeML, now); err != nil {
		return nil, nil, err
	}

	donor, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, nil, notFound(err, "donor", donorID)
	}
	if !donor.IsEligible {
		return nil, nil, s.refuse(donorID)
	}

	donation := &domain.Donation{
		ID:        uuid.NewString(),
		DonorID:   donorID,
		DonatedAt: donatedAt,
		VolumeML:  volumeML,
		CreatedAt: now,
	}
	updated, err := s.donors.RecordDonation(ctx, donation)
	if err != nil {
		if errors.Is(err, repositories.ErrConditionFailed) {
			// lost a race with another donation for the same donor
			return nil, nil, s.refuse(donorID)
		}
		return nil, nil, notFound(err, "donor", donorID)
	}

	s.metrics.Donation(true)
	s.events.Publish(ctx, Event{
		Type:    EventDonationRecorded,
		Subject: donorID,
		Data: map[string]interface{}{
			"donation_id":     donation.ID,
			"total_donations": updated.TotalDonations,
		},
		At: now,
	})
	s.logger.Info("donation recorded",
		zap.String("donor_id", donorID),
		zap.String("donation_id", donation.ID),
		zap.Int("total_donations", updated.TotalDonations),
	)
	return donation, updated, nil
}

func (s *DonorService) refuse(donorID string) error {
	s.metrics.Donation(false)
	s.logger.Info("donation refused, donor ineligible", zap.String("donor_id", donorID))
	return &domain.IneligibleDonorError{DonorID: donorID}
}

func validateDonation(donatedAt time.Time, volumeML int, now time.Time) error {
	if donatedAt.IsZero() {
		return domain.NewValidationError("donation_date", "is required")
	}
	if donatedAt.After(now) {
		return domain.NewValidationError("donation_date", "must not be in the future")
	}
	if volumeML <= 0 {
		return domain.NewValidationError("volume_ml", "must be positive")
	}
	return nil
}

// CollectInput records a donation and registers the unit it produced
type CollectInput struct {
	DonationDate    time.Time `json:"donation_date"`
	VolumeML        int       `json:"volume_ml"`
	ComponentType   string    `json:"component_type"`
	StorageLocation string    `json:"storage_location"`
}

// CollectResult is everything a collection produced
type CollectResult struct {
	Donation *domain.Donation  `json:"donation"`
	Donor    *domain.Donor     `json:"donor"`
	Unit     *domain.BloodUnit `json:"unit"`
}

// Collect records the donation, then creates the unit with the donor's blood type
func (s *DonorService) Collect(ctx context.Context, donorID string, in CollectInput) (*CollectResult, error) {
	if s.units == nil {
		return nil, errors.New("unit registration is not configured")
	}
	component := domain.ComponentWholeBlood
	if strings.TrimSpace(in.ComponentType) != "" {
		var err error
		if component, err = domain.ParseComponentType(in.ComponentType); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(in.StorageLocation) == "" {
		return nil, domain.NewValidationError("storage_location", "is required")
	}

	donation, donor, err := s.RecordDonation(ctx, donorID, in.DonationDate, in.VolumeML)
	if err != nil {
		return nil, err
	}

	unit, err := s.units.Create(ctx, CreateUnitInput{
		DonorID:         donorID,
		DonationID:      donation.ID,
		BloodType:       string(donor.BloodType),
		ComponentType:   string(component),
		VolumeML:        in.VolumeML,
		CollectionDate:  in.DonationDate,
		StorageLocation: in.StorageLocation,
	})
	if err != nil {
		// the donation stands and the donor stays deferred; operators reconcile from the event
		s.logger.Error("donation recorded but unit registration failed",
			zap.String("donor_id", donorID),
			zap.String("donation_id", donation.ID),
			zap.Error(err),
		)
		s.events.Publish(ctx, Event{
			Type:    EventCollectionIncomplete,
			Subject: donorID,
			Data: map[string]interface{}{
				"donation_id":      donation.ID,
				"component_type":   string(component),
				"storage_location": in.StorageLocation,
				"error":            err.Error(),
			},
			At: s.clock.Now(),
		})
		return &CollectResult{Donation: donation, Donor: donor}, err
	}
	return &CollectResult{Donation: donation, Donor: donor, Unit: unit}, nil
}

// RestoreEligibility applies the eligibility rule to every ineligible donor
func (s *DonorService) RestoreEligibility(ctx context.Context) (int, error) {
	if s.rule == nil {
		return 0, nil
	}
	donors, err := s.donors.ListIneligible(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	restored := 0
	for _, d := range donors {
		if !s.rule.Eligible(d, now) {
			continue
		}
		if err := s.donors.SetEligible(ctx, d.ID); err != nil {
			if !errors.Is(err, repositories.ErrConditionFailed) {
				s.logger.Warn("could not restore donor eligibility", zap.String("donor_id", d.ID), zap.Error(err))
			}
			continue
		}
		restored++
	}
	s.metrics.EligibilityRestored(restored)
	if restored > 0 {
		s.logger.Info("donor eligibility restored", zap.Int("count", restored))
	}
	return restored, nil
}

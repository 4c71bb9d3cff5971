package repositories

import (
	"context"
	"errors"
	"time"

	"bloodbank/internal/adapters/persistence/models"
	"bloodbank/internal/core/domain"
)

// Repository errors shared by the gorm and in-memory implementations
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicate       = errors.New("duplicate record")
	ErrConditionFailed = errors.New("precondition failed")
)

// UnitRepository is the durable blood unit store.
type UnitRepository interface {
	Create(ctx context.Context, unit *domain.BloodUnit) error
	GetByNumber(ctx context.Context, unitNumber string) (*domain.BloodUnit, error)
	// ListAfter returns up to limit units ordered by unit number, strictly after the cursor.
	ListAfter(ctx context.Context, filter domain.UnitFilter, after string, limit int) ([]domain.BloodUnit, error)
	Page(ctx context.Context, filter domain.UnitFilter, offset, limit int) ([]domain.BloodUnit, int64, error)
	// ListAllocatable returns available, unexpired units oldest collection first, then by unit number.
	ListAllocatable(ctx context.Context, bloodType domain.BloodType, component domain.ComponentType, now time.Time, limit int) ([]domain.BloodUnit, error)
	CountAllocatable(ctx context.Context, bloodType domain.BloodType, component domain.ComponentType, now time.Time) (int64, error)
	// ListExpiring returns available or reserved units whose expiry date is at or before now.
	ListExpiring(ctx context.Context, now time.Time) ([]domain.BloodUnit, error)
	// CompareAndSwap applies the change only if the stored version matches, and
	// appends a history row in the same transaction. Returns ErrVersionConflict otherwise.
	CompareAndSwap(ctx context.Context, change domain.StatusChange) (*domain.BloodUnit, error)
	History(ctx context.Context, unitNumber string) ([]domain.UnitHistory, error)
	CountByGroup(ctx context.Context) ([]StockCount, error)
	CountExpiringBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// StockCount is one row of the inventory breakdown.
type StockCount struct {
	BloodType     domain.BloodType     `json:"blood_type"`
	ComponentType domain.ComponentType `json:"component_type"`
	Status        domain.UnitStatus    `json:"status"`
	Count         int64                `json:"count"`
}

// ReservationRepository stores active reservations keyed by request id.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	Get(ctx context.Context, requestID string) (*domain.Reservation, error)
	// Claim removes and returns the reservation. Only one caller can claim a given request id.
	Claim(ctx context.Context, requestID string) (*domain.Reservation, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	Count(ctx context.Context) (int64, error)
}

// DonorRepository stores donors and their donations.
type DonorRepository interface {
	Create(ctx context.Context, donor *domain.Donor) error
	GetByID(ctx context.Context, id string) (*domain.Donor, error)
	List(ctx context.Context, offset, limit int) ([]domain.Donor, int64, error)
	// RecordDonation updates the donor and inserts the donation atomically, but only
	// while the donor is eligible. Returns ErrConditionFailed otherwise.
	RecordDonation(ctx context.Context, donation *domain.Donation) (*domain.Donor, error)
	ListIneligible(ctx context.Context) ([]domain.Donor, error)
	SetEligible(ctx context.Context, id string) error
}

// RequestRepository stores hospital requests.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	List(ctx context.Context, status domain.RequestStatus, offset, limit int) ([]domain.Request, int64, error)
	// UpdateStatus moves the request only if it is still in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.RequestStatus, reason string, at time.Time) (*domain.Request, error)
}

// UserRepository defines the staff user store
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// RefreshTokenRepository defines the refresh token store
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id uint) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
}

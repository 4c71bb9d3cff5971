package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"bloodbank/internal/adapters/persistence/models"
	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"
)

var (
	_ repositories.ReservationRepository  = (*ReservationRepository)(nil)
	_ repositories.DonorRepository        = (*DonorRepository)(nil)
	_ repositories.RequestRepository      = (*RequestRepository)(nil)
	_ repositories.UserRepository         = (*UserRepository)(nil)
	_ repositories.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
)

// ReservationRepository holds active reservations keyed by request id.
type ReservationRepository struct {
	mu           sync.Mutex
	reservations map[string]domain.Reservation
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{reservations: make(map[string]domain.Reservation)}
}

func (r *ReservationRepository) Create(_ context.Context, res *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[res.RequestID]; ok {
		return repositories.ErrDuplicate
	}
	r.reservations[res.RequestID] = cloneReservation(*res)
	return nil
}

func (r *ReservationRepository) Get(_ context.Context, requestID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[requestID]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	res = cloneReservation(res)
	return &res, nil
}

func (r *ReservationRepository) Claim(_ context.Context, requestID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[requestID]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	delete(r.reservations, requestID)
	return &res, nil
}

func (r *ReservationRepository) ListExpired(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.HoldExpired(now) {
			out = append(out, cloneReservation(res))
		}
	}
	slices.SortFunc(out, func(a, b domain.Reservation) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	return out, nil
}

func (r *ReservationRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.reservations)), nil
}

func cloneReservation(res domain.Reservation) domain.Reservation {
	res.UnitNumbers = append([]string(nil), res.UnitNumbers...)
	return res
}

// DonorRepository holds donors and donations.
type DonorRepository struct {
	mu        sync.Mutex
	donors    map[string]domain.Donor
	donations []domain.Donation
}

func NewDonorRepository() *DonorRepository {
	return &DonorRepository{donors: make(map[string]domain.Donor)}
}

func (r *DonorRepository) Create(_ context.Context, donor *domain.Donor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.donors[donor.ID]; ok {
		return repositories.ErrDuplicate
	}
	r.donors[donor.ID] = *donor
	return nil
}

func (r *DonorRepository) GetByID(_ context.Context, id string) (*domain.Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.donors[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	return &d, nil
}

func (r *DonorRepository) List(_ context.Context, offset, limit int) ([]domain.Donor, int64, error) {
	r.mu.Lock()
	all := make([]domain.Donor, 0, len(r.donors))
	for _, d := range r.donors {
		all = append(all, d)
	}
	r.mu.Unlock()

	slices.SortFunc(all, func(a, b domain.Donor) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *DonorRepository) RecordDonation(_ context.Context, donation *domain.Donation) (*domain.Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.donors[donation.DonorID]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	if !d.IsEligible {
		return nil, repositories.ErrConditionFailed
	}

	donated := donation.DonatedAt
	d.LastDonationDate = &donated
	d.TotalDonations++
	d.IsEligible = false
	d.UpdatedAt = donation.CreatedAt
	r.donors[d.ID] = d
	r.donations = append(r.donations, *donation)
	return &d, nil
}

// Donations returns every recorded donation in insertion order.
func (r *DonorRepository) Donations() []domain.Donation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Donation(nil), r.donations...)
}

func (r *DonorRepository) ListIneligible(_ context.Context) ([]domain.Donor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Donor
	for _, d := range r.donors {
		if !d.IsEligible {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b domain.Donor) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *DonorRepository) SetEligible(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.donors[id]
	if !ok || d.IsEligible {
		return repositories.ErrConditionFailed
	}
	d.IsEligible = true
	r.donors[id] = d
	return nil
}

// RequestRepository holds hospital requests.
type RequestRepository struct {
	mu       sync.Mutex
	requests map[string]domain.Request
}

func NewRequestRepository() *RequestRepository {
	return &RequestRepository{requests: make(map[string]domain.Request)}
}

func (r *RequestRepository) Create(_ context.Context, req *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[req.ID]; ok {
		return repositories.ErrDuplicate
	}
	r.requests[req.ID] = *req
	return nil
}

func (r *RequestRepository) GetByID(_ context.Context, id string) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	return &req, nil
}

func (r *RequestRepository) List(_ context.Context, status domain.RequestStatus, offset, limit int) ([]domain.Request, int64, error) {
	r.mu.Lock()
	var all []domain.Request
	for _, req := range r.requests {
		if status == "" || req.Status == status {
			all = append(all, req)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(all, func(a, b domain.Request) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *RequestRepository) UpdateStatus(_ context.Context, id string, from, to domain.RequestStatus, reason string, at time.Time) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	if req.Status != from {
		return nil, repositories.ErrVersionConflict
	}
	req.Status = to
	if reason != "" {
		req.Reason = reason
	}
	req.UpdatedAt = at
	r.requests[id] = req
	return &req, nil
}

// UserRepository holds staff accounts.
type UserRepository struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uint]models.User)}
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return repositories.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repositories.ErrRecordNotFound
}

func (r *UserRepository) List(_ context.Context, offset, limit int) ([]*models.User, int64, error) {
	r.mu.Lock()
	all := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		u := u
		all = append(all, &u)
	}
	r.mu.Unlock()

	slices.SortFunc(all, func(a, b *models.User) int { return int(a.ID) - int(b.ID) })
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if err == repositories.ErrRecordNotFound {
		return false, nil
	}
	return err == nil, err
}

// RefreshTokenRepository holds refresh tokens.
type RefreshTokenRepository struct {
	mu     sync.Mutex
	nextID uint
	tokens map[uint]models.RefreshToken
}

func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: make(map[uint]models.RefreshToken)}
}

func (r *RefreshTokenRepository) Create(_ context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	token.ID = r.nextID
	r.tokens[token.ID] = *token
	return nil
}

func (r *RefreshTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.TokenHash == tokenHash && t.RevokedAt == nil {
			return &t, nil
		}
	}
	return nil, repositories.ErrRecordNotFound
}

func (r *RefreshTokenRepository) Revoke(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tokens[id]; ok {
		now := time.Now()
		t.RevokedAt = &now
		r.tokens[id] = t
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.TokenHash == tokenHash && t.RevokedAt == nil {
			now := time.Now()
			t.RevokedAt = &now
			r.tokens[id] = t
		}
	}
	return nil
}

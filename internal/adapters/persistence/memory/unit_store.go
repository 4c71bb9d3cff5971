package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"
)

var _ repositories.UnitRepository = (*UnitRepository)(nil)

// UnitRepository keeps units and their history in process memory.
type UnitRepository struct {
	mu      sync.RWMutex
	units   map[string]domain.BloodUnit
	history map[string][]domain.UnitHistory
}

func NewUnitRepository() *UnitRepository {
	return &UnitRepository{
		units:   make(map[string]domain.BloodUnit),
		history: make(map[string][]domain.UnitHistory),
	}
}

func (r *UnitRepository) Create(_ context.Context, unit *domain.BloodUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[unit.UnitNumber]; ok {
		return repositories.ErrDuplicate
	}
	r.units[unit.UnitNumber] = cloneUnit(*unit)
	return nil
}

func (r *UnitRepository) GetByNumber(_ context.Context, unitNumber string) (*domain.BloodUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[unitNumber]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	u = cloneUnit(u)
	return &u, nil
}

func (r *UnitRepository) ListAfter(_ context.Context, filter domain.UnitFilter, after string, limit int) ([]domain.BloodUnit, error) {
	out := r.collect(func(u domain.BloodUnit) bool {
		return u.UnitNumber > after && filter.Matches(u)
	}, byUnitNumber)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UnitRepository) Page(_ context.Context, filter domain.UnitFilter, offset, limit int) ([]domain.BloodUnit, int64, error) {
	all := r.collect(filter.Matches, byUnitNumber)
	return window(all, offset, limit), int64(len(all)), nil
}

func (r *UnitRepository) ListAllocatable(_ context.Context, bloodType domain.BloodType, component domain.ComponentType, now time.Time, limit int) ([]domain.BloodUnit, error) {
	out := r.collect(allocatable(bloodType, component, now), byCollectionDate)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UnitRepository) CountAllocatable(_ context.Context, bloodType domain.BloodType, component domain.ComponentType, now time.Time) (int64, error) {
	return int64(len(r.collect(allocatable(bloodType, component, now), nil))), nil
}

func (r *UnitRepository) ListExpiring(_ context.Context, now time.Time) ([]domain.BloodUnit, error) {
	return r.collect(func(u domain.BloodUnit) bool {
		return (u.Status == domain.StatusAvailable || u.Status == domain.StatusReserved) && u.ExpiredAt(now)
	}, func(a, b domain.BloodUnit) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		return strings.Compare(a.UnitNumber, b.UnitNumber)
	}), nil
}

func (r *UnitRepository) CompareAndSwap(_ context.Context, change domain.StatusChange) (*domain.BloodUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.units[change.UnitNumber]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	if u.Version != change.Version || u.Status != change.From {
		return nil, repositories.ErrVersionConflict
	}

	u = u.Apply(change)
	r.units[u.UnitNumber] = u
	r.history[u.UnitNumber] = append(r.history[u.UnitNumber], domain.UnitHistory{
		UnitNumber:  change.UnitNumber,
		From:        change.From,
		To:          change.To,
		ReservedFor: change.ReservedFor,
		Reason:      change.Reason,
		At:          change.At,
	})

	u = cloneUnit(u)
	return &u, nil
}

func (r *UnitRepository) History(_ context.Context, unitNumber string) ([]domain.UnitHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.UnitHistory(nil), r.history[unitNumber]...), nil
}

func (r *UnitRepository) CountByGroup(_ context.Context) ([]repositories.StockCount, error) {
	type key struct {
		bt domain.BloodType
		ct domain.ComponentType
		st domain.UnitStatus
	}

	r.mu.RLock()
	counts := make(map[key]int64)
	for _, u := range r.units {
		counts[key{u.BloodType, u.ComponentType, u.Status}]++
	}
	r.mu.RUnlock()

	out := make([]repositories.StockCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, repositories.StockCount{BloodType: k.bt, ComponentType: k.ct, Status: k.st, Count: n})
	}
	slices.SortFunc(out, func(a, b repositories.StockCount) int {
		if c := strings.Compare(string(a.BloodType), string(b.BloodType)); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.ComponentType), string(b.ComponentType)); c != 0 {
			return c
		}
		return strings.Compare(string(a.Status), string(b.Status))
	})
	return out, nil
}

func (r *UnitRepository) CountExpiringBetween(_ context.Context, from, to time.Time) (int64, error) {
	n := len(r.collect(func(u domain.BloodUnit) bool {
		return (u.Status == domain.StatusAvailable || u.Status == domain.StatusReserved) &&
			u.ExpiresAt.After(from) && !u.ExpiresAt.After(to)
	}, nil))
	return int64(n), nil
}

func (r *UnitRepository) collect(keep func(domain.BloodUnit) bool, order func(a, b domain.BloodUnit) int) []domain.BloodUnit {
	r.mu.RLock()
	out := make([]domain.BloodUnit, 0)
	for _, u := range r.units {
		if keep(u) {
			out = append(out, cloneUnit(u))
		}
	}
	r.mu.RUnlock()

	if order != nil {
		slices.SortFunc(out, order)
	}
	return out
}

func allocatable(bloodType domain.BloodType, component domain.ComponentType, now time.Time) func(domain.BloodUnit) bool {
	return func(u domain.BloodUnit) bool {
		return u.BloodType == bloodType && u.ComponentType == component && u.Allocatable(now)
	}
}

func byUnitNumber(a, b domain.BloodUnit) int {
	return strings.Compare(a.UnitNumber, b.UnitNumber)
}

func byCollectionDate(a, b domain.BloodUnit) int {
	if c := a.CollectedAt.Compare(b.CollectedAt); c != 0 {
		return c
	}
	return strings.Compare(a.UnitNumber, b.UnitNumber)
}

func cloneUnit(u domain.BloodUnit) domain.BloodUnit {
	if u.LabResults != nil {
		u.LabResults = append([]byte(nil), u.LabResults...)
	}
	return u
}

func window[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

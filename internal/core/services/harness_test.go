package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"bloodbank/internal/adapters/lock"
	"bloodbank/internal/adapters/persistence/memory"
	"bloodbank/internal/core/domain"
	"bloodbank/internal/pkg/clock"
	"bloodbank/internal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testHold = 2 * time.Hour

// recorder captures published events
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// harness wires every inventory service onto the in-memory stores
type harness struct {
	ctx          context.Context
	clock        *clock.Fake
	metrics      *metrics.Metrics
	events       *recorder
	unitRepo     *memory.UnitRepository
	reservations *memory.ReservationRepository
	donorRepo    *memory.DonorRepository
	requestRepo  *memory.RequestRepository

	units      *UnitService
	sweep      *SweepService
	allocation *AllocationService
	donors     *DonorService
	requests   *RequestService
	inventory  *InventoryService
}

func newHarness(t testing.TB, now time.Time) *harness {
	t.Helper()
	h := &harness{
		ctx:          context.Background(),
		clock:        clock.NewFake(now),
		metrics:      metrics.New(prometheus.NewRegistry()),
		events:       &recorder{},
		unitRepo:     memory.NewUnitRepository(),
		reservations: memory.NewReservationRepository(),
		donorRepo:    memory.NewDonorRepository(),
		requestRepo:  memory.NewRequestRepository(),
	}
	opts := []Option{WithClock(h.clock), WithMetrics(h.metrics), WithEvents(h.events)}

	h.units = NewUnitService(h.unitRepo, h.donorRepo, opts...)
	h.allocation = NewAllocationService(h.units, h.reservations, lock.NewLocal(), testHold, opts...)
	h.sweep = NewSweepService(h.units, h.allocation, opts...)
	h.donors = NewDonorService(h.donorRepo, h.units, DeferralRule{Period: 56 * 24 * time.Hour}, opts...)
	h.requests = NewRequestService(h.requestRepo, h.allocation, opts...)
	h.inventory = NewInventoryService(h.unitRepo, h.reservations, 3*24*time.Hour, opts...)
	return h
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// putUnit stores an available unit directly, bypassing donor checks
func (h *harness) putUnit(t testing.TB, number string, bt domain.BloodType, ct domain.ComponentType, collected time.Time) domain.BloodUnit {
	t.Helper()
	expires, err := domain.ExpiryDate(ct, collected)
	require.NoError(t, err)
	u := domain.BloodUnit{
		UnitNumber:      number,
		DonorID:         "donor-" + number,
		BloodType:       bt,
		ComponentType:   ct,
		VolumeML:        450,
		CollectedAt:     collected,
		ExpiresAt:       expires,
		StorageLocation: "fridge-1",
		Status:          domain.StatusAvailable,
		Version:         1,
		CreatedAt:       collected,
		UpdatedAt:       collected,
	}
	require.NoError(t, h.unitRepo.Create(h.ctx, &u))
	return u
}

func (h *harness) putDonor(t testing.TB, id string, bt domain.BloodType, eligible bool) domain.Donor {
	t.Helper()
	d := domain.Donor{
		ID:         id,
		FullName:   "Donor " + id,
		BloodType:  bt,
		IsEligible: eligible,
		CreatedAt:  h.clock.Now(),
		UpdatedAt:  h.clock.Now(),
	}
	require.NoError(t, h.donorRepo.Create(h.ctx, &d))
	return d
}

func (h *harness) status(t testing.TB, number string) domain.UnitStatus {
	t.Helper()
	u, err := h.unitRepo.GetByNumber(h.ctx, number)
	require.NoError(t, err)
	return u.Status
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpiresPastDateUnits(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))
	h.putUnit(t, "PL-OLD", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 20))
	h.putUnit(t, "PL-EDGE", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 25))
	h.putUnit(t, "RBC-FRESH", domain.BloodTypeOPos, domain.ComponentRBC, day(2024, 2, 25))

	res, err := h.sweep.Run(h.ctx)
	require.NoError(t, err)

	// PL-EDGE expires exactly at now and is included
	assert.Equal(t, 2, res.Transitioned)
	assert.Equal(t, 2, res.Scanned)
	assert.Zero(t, res.Failed)
	assert.Equal(t, domain.StatusExpired, h.status(t, "PL-OLD"))
	assert.Equal(t, domain.StatusExpired, h.status(t, "PL-EDGE"))
	assert.Equal(t, domain.StatusAvailable, h.status(t, "RBC-FRESH"))
	assert.Equal(t, 1, h.events.count(EventSweepCompleted))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.SweepExpired))
}

func TestSweepIsIdempotent(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))
	h.putUnit(t, "PL-1", domain.BloodTypeANeg, domain.ComponentPlatelets, day(2024, 2, 1))

	first, err := h.sweep.Run(h.ctx)
	require.NoError(t, err)
	second, err := h.sweep.Run(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Transitioned)
	assert.Zero(t, second.Transitioned)

	history, err := h.units.History(h.ctx, "PL-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, h.events.count(EventUnitTransitioned))
}

func TestSweepPlasmaAfterOneYear(t *testing.T) {
	h := newHarness(t, day(2024, 12, 31))
	h.putUnit(t, "FFP-1", domain.BloodTypeBPos, domain.ComponentPlasma, day(2024, 1, 1))

	unit, err := h.units.Get(h.ctx, "FFP-1")
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 1), unit.ExpiresAt)

	res, err := h.sweep.Run(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Transitioned)

	h.clock.Set(day(2025, 1, 2))
	res, err = h.sweep.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)
	assert.Equal(t, domain.StatusExpired, h.status(t, "FFP-1"))
}

func TestSweepBreaksReservationHoldingExpiredUnit(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))
	h.putUnit(t, "PL-A", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 28))
	h.putUnit(t, "PL-B", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 29))

	_, err := h.allocation.Reserve(h.ctx, ReserveInput{RequestID: "req-1", BloodType: "O+", ComponentType: "platelets", UnitsNeeded: 2})
	require.NoError(t, err)

	var reopened []string
	h.allocation.OnHoldExpired(func(_ context.Context, id string) { reopened = append(reopened, id) })

	// PL-A expires 2024-03-04, PL-B 2024-03-05
	h.clock.Set(day(2024, 3, 4))
	res, err := h.sweep.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)
	assert.Zero(t, res.Failed)

	unit, err := h.units.Get(h.ctx, "PL-A")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, unit.Status)
	assert.Empty(t, unit.ReservedFor)

	sibling, err := h.units.Get(h.ctx, "PL-B")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAvailable, sibling.Status)
	assert.Empty(t, sibling.ReservedFor)

	_, err = h.allocation.Get(h.ctx, "req-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{"req-1"}, reopened)
	assert.Equal(t, 1, h.events.count(EventHoldBroken))

	// nothing is left to issue
	_, err = h.allocation.Commit(h.ctx, "req-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.StatusAvailable, h.status(t, "PL-B"))
}

func TestSweepExpiresReservedUnitWithoutReservationRecord(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))
	h.putUnit(t, "PL-A", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 28))

	_, err := h.allocation.Reserve(h.ctx, ReserveInput{RequestID: "req-1", BloodType: "O+", ComponentType: "platelets", UnitsNeeded: 1})
	require.NoError(t, err)
	// the record is lost, the unit still carries the hold
	_, err = h.reservations.Claim(h.ctx, "req-1")
	require.NoError(t, err)

	h.clock.Set(day(2024, 3, 4))
	res, err := h.sweep.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)
	assert.Equal(t, domain.StatusExpired, h.status(t, "PL-A"))
	assert.Zero(t, h.events.count(EventHoldBroken))
}

// failingCAS refuses to transition one unit
type failingCAS struct {
	repositories.UnitRepository
	unitNumber string
}

func (f failingCAS) CompareAndSwap(ctx context.Context, c domain.StatusChange) (*domain.BloodUnit, error) {
	if c.UnitNumber == f.unitNumber {
		return nil, assert.AnError
	}
	return f.UnitRepository.CompareAndSwap(ctx, c)
}

func TestSweepToleratesPerUnitFailures(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))
	h.putUnit(t, "PL-1", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 1))
	h.putUnit(t, "PL-2", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 1))
	h.putUnit(t, "PL-3", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 2, 1))

	units := NewUnitService(failingCAS{UnitRepository: h.unitRepo, unitNumber: "PL-2"}, nil, WithClock(h.clock))
	sweep := NewSweepService(units, h.allocation, WithClock(h.clock))

	res, err := sweep.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Transitioned)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, domain.StatusAvailable, h.status(t, "PL-2"))

	// the next run picks up the straggler once the store recovers
	res, err = h.sweep.Run(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)
}

// failingList makes the selection query fail
type failingList struct {
	repositories.UnitRepository
}

func (failingList) ListExpiring(context.Context, time.Time) ([]domain.BloodUnit, error) {
	return nil, assert.AnError
}

func TestSweepReportsUnreachableStore(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))
	sweep := NewSweepService(NewUnitService(failingList{h.unitRepo}, nil), nil)

	_, err := sweep.Run(h.ctx)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestConcurrentSweepsTransitionEachUnitOnce(t *testing.T) {
	h := newHarness(t, day(2024, 6, 1))
	for _, n := range []string{"A", "B", "C", "D", "E", "F"} {
		h.putUnit(t, "PL-"+n, domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 5, 1))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// a fresh service per goroutine so runs really overlap instead of sharing one flight
			sweep := NewSweepService(h.units, h.allocation, WithClock(h.clock))
			res, err := sweep.Run(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			total += res.Transitioned
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, total)
	for _, n := range []string{"A", "B", "C", "D", "E", "F"} {
		history, err := h.units.History(h.ctx, "PL-"+n)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	}
}

func TestSweepRacingReserveLeavesNoExpiredUnitHeld(t *testing.T) {
	boundary := day(2024, 3, 4)
	h := newHarness(t, boundary.Add(-time.Millisecond))
	// even units expire at the boundary, odd ones a day later
	for i := 0; i < 12; i++ {
		collected := day(2024, 2, 28)
		if i%2 == 1 {
			collected = day(2024, 2, 29)
		}
		h.putUnit(t, fmt.Sprintf("PL-%02d", i), domain.BloodTypeOPos, domain.ComponentPlatelets, collected)
	}

	const requests = 8
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.allocation.Reserve(context.Background(), ReserveInput{
				RequestID:     fmt.Sprintf("req-%d", i),
				BloodType:     "O+",
				ComponentType: "platelets",
				UnitsNeeded:   1,
			})
			if err != nil {
				assert.True(t, errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition), err)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweep := NewSweepService(h.units, h.allocation, WithClock(h.clock))
			_, err := sweep.Run(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.clock.Set(boundary)
	}()
	wg.Wait()

	// settle anything that crossed the boundary mid-run
	h.clock.Set(boundary)
	_, err := h.sweep.Run(h.ctx)
	require.NoError(t, err)

	held := make(map[string]string)
	for i := 0; i < requests; i++ {
		id := fmt.Sprintf("req-%d", i)
		res, err := h.allocation.Get(h.ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		require.NoError(t, err)
		for _, n := range res.UnitNumbers {
			prev, dup := held[n]
			assert.False(t, dup, "unit %s held by %s and %s", n, prev, id)
			held[n] = id
		}
	}

	for i := 0; i < 12; i++ {
		n := fmt.Sprintf("PL-%02d", i)
		unit, err := h.units.Get(h.ctx, n)
		require.NoError(t, err)
		switch unit.Status {
		case domain.StatusExpired:
			assert.NotContains(t, held, n)
		case domain.StatusReserved:
			assert.Equal(t, held[n], unit.ReservedFor, n)
		default:
			assert.Equal(t, domain.StatusAvailable, unit.Status, n)
			assert.NotContains(t, held, n)
		}
		if i%2 == 0 {
			assert.Equal(t, domain.StatusExpired, unit.Status, n)
		}
	}
}

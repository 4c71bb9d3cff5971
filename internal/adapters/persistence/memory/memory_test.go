package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func unit(number string, bt domain.BloodType, ct domain.ComponentType, collectedDaysAgo int) *domain.BloodUnit {
	collected := base.AddDate(0, 0, -collectedDaysAgo)
	expires, _ := domain.ExpiryDate(ct, collected)
	return &domain.BloodUnit{
		UnitNumber:    number,
		DonorID:       "D-1",
		BloodType:     bt,
		ComponentType: ct,
		VolumeML:      450,
		CollectedAt:   collected,
		ExpiresAt:     expires,
		Status:        domain.StatusAvailable,
		Version:       1,
	}
}

func TestUnitCreateRejectsDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewUnitRepository()

	require.NoError(t, repo.Create(ctx, unit("U-1", domain.BloodTypeOPos, domain.ComponentWholeBlood, 1)))
	err := repo.Create(ctx, unit("U-1", domain.BloodTypeOPos, domain.ComponentWholeBlood, 2))
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	_, err = repo.GetByNumber(ctx, "U-404")
	assert.ErrorIs(t, err, repositories.ErrRecordNotFound)
}

func TestUnitCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewUnitRepository()
	require.NoError(t, repo.Create(ctx, unit("U-1", domain.BloodTypeOPos, domain.ComponentWholeBlood, 1)))

	updated, err := repo.CompareAndSwap(ctx, domain.StatusChange{
		UnitNumber:  "U-1",
		Version:     1,
		From:        domain.StatusAvailable,
		To:          domain.StatusReserved,
		ReservedFor: "REQ-1",
		At:          base,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReserved, updated.Status)
	assert.Equal(t, "REQ-1", updated.ReservedFor)
	assert.EqualValues(t, 2, updated.Version)

	// stale version
	_, err = repo.CompareAndSwap(ctx, domain.StatusChange{
		UnitNumber: "U-1",
		Version:    1,
		From:       domain.StatusAvailable,
		To:         domain.StatusDiscard,
		At:         base,
	})
	assert.ErrorIs(t, err, repositories.ErrVersionConflict)

	history, err := repo.History(ctx, "U-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.StatusAvailable, history[0].From)
	assert.Equal(t, domain.StatusReserved, history[0].To)
}

func TestConcurrentCompareAndSwapHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewUnitRepository()
	require.NoError(t, repo.Create(ctx, unit("U-1", domain.BloodTypeOPos, domain.ComponentWholeBlood, 1)))

	var wg sync.WaitGroup
	results := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CompareAndSwap(ctx, domain.StatusChange{
				UnitNumber: "U-1",
				Version:    1,
				From:       domain.StatusAvailable,
				To:         domain.StatusDiscard,
				At:         base,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, repositories.ErrVersionConflict)
	}
	assert.Equal(t, 1, wins)
}

func TestListAllocatableOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewUnitRepository()
	for _, u := range []*domain.BloodUnit{
		unit("U-3", domain.BloodTypeOPos, domain.ComponentWholeBlood, 5),
		unit("U-2", domain.BloodTypeOPos, domain.ComponentWholeBlood, 10),
		unit("U-1", domain.BloodTypeOPos, domain.ComponentWholeBlood, 5),
		unit("U-4", domain.BloodTypeONeg, domain.ComponentWholeBlood, 20),
		unit("U-5", domain.BloodTypeOPos, domain.ComponentPlasma, 20),
		unit("U-6", domain.BloodTypeOPos, domain.ComponentWholeBlood, 50),
	} {
		require.NoError(t, repo.Create(ctx, u))
	}

	got, err := repo.ListAllocatable(ctx, domain.BloodTypeOPos, domain.ComponentWholeBlood, base, 0)
	require.NoError(t, err)

	numbers := make([]string, 0, len(got))
	for _, u := range got {
		numbers = append(numbers, u.UnitNumber)
	}
	// U-6 is past its 42 days
	assert.Equal(t, []string{"U-2", "U-1", "U-3"}, numbers)

	n, err := repo.CountAllocatable(ctx, domain.BloodTypeOPos, domain.ComponentWholeBlood, base)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	limited, err := repo.ListAllocatable(ctx, domain.BloodTypeOPos, domain.ComponentWholeBlood, base, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListAfterPagesByUnitNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewUnitRepository()
	for _, n := range []string{"U-5", "U-1", "U-3", "U-2", "U-4"} {
		require.NoError(t, repo.Create(ctx, unit(n, domain.BloodTypeAPos, domain.ComponentRBC, 1)))
	}

	page, err := repo.ListAfter(ctx, domain.UnitFilter{}, "U-2", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "U-3", page[0].UnitNumber)
	assert.Equal(t, "U-4", page[1].UnitNumber)

	rows, total, err := repo.Page(ctx, domain.UnitFilter{}, 4, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "U-5", rows[0].UnitNumber)

	rows, _, err = repo.Page(ctx, domain.UnitFilter{}, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReservationClaimIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository()
	res := &domain.Reservation{
		RequestID:   "REQ-1",
		BloodType:   domain.BloodTypeOPos,
		UnitNumbers: []string{"U-1", "U-2"},
		ExpiresAt:   base.Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, res))
	assert.ErrorIs(t, repo.Create(ctx, res), repositories.ErrDuplicate)

	got, err := repo.Get(ctx, "REQ-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"U-1", "U-2"}, got.UnitNumbers)

	expired, err := repo.ListExpired(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, expired, 1)

	claimed, err := repo.Claim(ctx, "REQ-1")
	require.NoError(t, err)
	assert.Equal(t, "REQ-1", claimed.RequestID)

	_, err = repo.Claim(ctx, "REQ-1")
	assert.ErrorIs(t, err, repositories.ErrRecordNotFound)
	_, err = repo.Get(ctx, "REQ-1")
	assert.ErrorIs(t, err, repositories.ErrRecordNotFound)
}

func TestRecordDonationRequiresEligibility(t *testing.T) {
	ctx := context.Background()
	repo := NewDonorRepository()
	require.NoError(t, repo.Create(ctx, &domain.Donor{ID: "D-1", FullName: "Ann", BloodType: domain.BloodTypeOPos, IsEligible: true}))

	donor, err := repo.RecordDonation(ctx, &domain.Donation{ID: "DN-1", DonorID: "D-1", DonatedAt: base, VolumeML: 450})
	require.NoError(t, err)
	assert.False(t, donor.IsEligible)
	assert.Equal(t, 1, donor.TotalDonations)
	require.NotNil(t, donor.LastDonationDate)
	assert.Equal(t, base, *donor.LastDonationDate)

	_, err = repo.RecordDonation(ctx, &domain.Donation{ID: "DN-2", DonorID: "D-1", DonatedAt: base, VolumeML: 450})
	assert.ErrorIs(t, err, repositories.ErrConditionFailed)
	assert.Len(t, repo.Donations(), 1)

	ineligible, err := repo.ListIneligible(ctx)
	require.NoError(t, err)
	require.Len(t, ineligible, 1)

	require.NoError(t, repo.SetEligible(ctx, "D-1"))
	assert.ErrorIs(t, repo.SetEligible(ctx, "D-1"), repositories.ErrConditionFailed)
}

func TestRequestUpdateStatusChecksFrom(t *testing.T) {
	ctx := context.Background()
	repo := NewRequestRepository()
	require.NoError(t, repo.Create(ctx, &domain.Request{ID: "R-1", Status: domain.RequestPending, CreatedAt: base}))

	updated, err := repo.UpdateStatus(ctx, "R-1", domain.RequestPending, domain.RequestApproved, "", base)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, updated.Status)

	_, err = repo.UpdateStatus(ctx, "R-1", domain.RequestPending, domain.RequestRejected, "late", base)
	assert.ErrorIs(t, err, repositories.ErrVersionConflict)

	rows, total, err := repo.List(ctx, domain.RequestApproved, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, rows, 1)
}

package services

import (
	"testing"

	"bloodbank/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventorySummary(t *testing.T) {
	h := newHarness(t, day(2024, 3, 20))
	// whole blood from 2024-02-08 expires 2024-03-21, inside the three day window
	h.putUnit(t, "WB-SOON", domain.BloodTypeOPos, domain.ComponentWholeBlood, day(2024, 2, 8))
	h.putUnit(t, "WB-1", domain.BloodTypeOPos, domain.ComponentWholeBlood, day(2024, 3, 1))
	h.putUnit(t, "FFP-1", domain.BloodTypeANeg, domain.ComponentPlasma, day(2024, 3, 1))
	h.putUnit(t, "PL-OLD", domain.BloodTypeANeg, domain.ComponentPlatelets, day(2024, 3, 1))

	_, err := h.allocation.Reserve(h.ctx, ReserveInput{RequestID: "req-1", BloodType: "O+", UnitsNeeded: 1})
	require.NoError(t, err)
	_, err = h.sweep.Run(h.ctx)
	require.NoError(t, err)

	summary, err := h.inventory.Summary(h.ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.TotalUnits)
	assert.Equal(t, int64(2), summary.ByStatus[domain.StatusAvailable])
	assert.Equal(t, int64(1), summary.ByStatus[domain.StatusReserved])
	assert.Equal(t, int64(1), summary.ByStatus[domain.StatusExpired])
	assert.Equal(t, int64(0), summary.ByStatus[domain.StatusUsed])
	assert.Equal(t, int64(1), summary.AvailableBy[domain.BloodTypeOPos])
	assert.Equal(t, int64(1), summary.AvailableBy[domain.BloodTypeANeg])
	assert.Equal(t, int64(0), summary.AvailableBy[domain.BloodTypeABPos])
	assert.Equal(t, int64(1), summary.ExpiringSoon)
	assert.Equal(t, 3, summary.ExpiringWindowDays)
	assert.Equal(t, int64(1), summary.ActiveReservations)
	assert.Len(t, summary.ShelfLife, 4)
}

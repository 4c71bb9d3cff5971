package services

import (
	"testing"
	"time"

	"bloodbank/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCronServiceRejectsBadSpec(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))

	c := NewCronService(h.sweep, h.donors, zap.NewNop())
	err := c.Start("not a cron line", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expiry sweep")

	c = NewCronService(h.sweep, h.donors, zap.NewNop())
	require.Error(t, c.Start("", "61 * * * *"))
}

func TestCronServiceStartStop(t *testing.T) {
	h := newHarness(t, day(2024, 3, 1))

	c := NewCronService(h.sweep, h.donors, nil)
	require.NoError(t, c.Start("@every 1h", "@daily"))
	assert.Len(t, c.cron.Entries(), 2)
	c.Stop()
}

func TestCronJobsRunOnce(t *testing.T) {
	h := newHarness(t, day(2024, 3, 20))
	h.putUnit(t, "PL-1", domain.BloodTypeOPos, domain.ComponentPlatelets, day(2024, 3, 1))
	c := NewCronService(h.sweep, h.donors, nil)

	c.runSweep()
	c.runEligibility()

	assert.Equal(t, domain.StatusExpired, h.status(t, "PL-1"))
}

func TestReservationReaperReleasesExpiredHolds(t *testing.T) {
	h := newHarness(t, day(2024, 3, 20))
	h.putUnit(t, "U-1", domain.BloodTypeOPos, domain.ComponentWholeBlood, day(2024, 3, 1))
	_, err := h.allocation.Reserve(h.ctx, ReserveInput{RequestID: "req-1", BloodType: "O+", UnitsNeeded: 1})
	require.NoError(t, err)
	h.clock.Advance(testHold + time.Minute)

	r := NewReservationReaper(h.allocation, 10*time.Millisecond, nil)
	r.Start()
	require.Eventually(t, func() bool {
		return h.status(t, "U-1") == domain.StatusAvailable
	}, 2*time.Second, 10*time.Millisecond)
	r.Stop()
	r.Stop()

	_, err = h.allocation.Get(h.ctx, "req-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, h.events.count(EventHoldExpired))
}

package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCanTransitionTo(t *testing.T) {
	allowed := map[[2]UnitStatus]bool{
		{StatusAvailable, StatusReserved}: true,
		{StatusReserved, StatusAvailable}: true,
		{StatusReserved, StatusUsed}:      true,
		{StatusAvailable, StatusExpired}:  true,
		{StatusReserved, StatusExpired}:   true,
		{StatusAvailable, StatusDiscard}:  true,
		{StatusExpired, StatusDiscard}:    true,
	}

	for _, from := range UnitStatuses() {
		for _, to := range UnitStatuses() {
			want := allowed[[2]UnitStatus{from, to}]
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range []UnitStatus{StatusUsed, StatusDiscard} {
		assert.True(t, s.Terminal())
		for _, to := range UnitStatuses() {
			assert.False(t, s.CanTransitionTo(to))
		}
	}
	assert.False(t, StatusExpired.Terminal())
	assert.False(t, StatusExpired.CanTransitionTo(StatusAvailable))
}

func TestCheckTransitionNamesBothStatuses(t *testing.T) {
	err := CheckTransition("BU-1", StatusUsed, StatusAvailable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusUsed, te.From)
	assert.Equal(t, StatusAvailable, te.To)
	assert.Contains(t, err.Error(), "used")
	assert.Contains(t, err.Error(), "available")

	assert.NoError(t, CheckTransition("BU-1", StatusAvailable, StatusReserved))
}

// Random walks that only follow CheckTransition never leave a terminal state
// and never reach an unknown status.
func TestTransitionWalks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unit := BloodUnit{UnitNumber: "BU-W", Status: StatusAvailable, Version: 1}
		steps := rapid.IntRange(1, 30).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			target := rapid.SampledFrom(UnitStatuses()).Draw(t, "target")
			before := unit
			if err := CheckTransition(unit.UnitNumber, unit.Status, target); err != nil {
				require.ErrorIs(t, err, ErrInvalidTransition)
				require.Equal(t, before, unit)
				continue
			}
			require.False(t, before.Status.Terminal())
			unit = unit.Apply(StatusChange{To: target, At: time.Unix(int64(i), 0)})
			require.True(t, unit.Status.Valid())
			require.Equal(t, before.Version+1, unit.Version)
		}
	})
}

func TestParseUnitStatus(t *testing.T) {
	s, err := ParseUnitStatus(" Reserved ")
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, s)

	_, err = ParseUnitStatus("quarantined")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUnitFilterMatches(t *testing.T) {
	u := BloodUnit{BloodType: BloodTypeOPos, ComponentType: ComponentRBC, Status: StatusAvailable}

	assert.True(t, UnitFilter{}.Matches(u))
	assert.True(t, UnitFilter{BloodType: BloodTypeOPos, Status: StatusAvailable}.Matches(u))
	assert.False(t, UnitFilter{ComponentType: ComponentPlasma}.Matches(u))
	assert.False(t, UnitFilter{Status: StatusReserved}.Matches(u))
}

func TestAllocatable(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	u := BloodUnit{Status: StatusAvailable, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, u.Allocatable(now))

	u.ExpiresAt = now
	assert.False(t, u.Allocatable(now))
	assert.True(t, u.ExpiredAt(now))

	u.ExpiresAt = now.Add(time.Hour)
	u.Status = StatusReserved
	assert.False(t, u.Allocatable(now))
}

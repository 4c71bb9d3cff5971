package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestExpiryDate(t *testing.T) {
	collected := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		component ComponentType
		want      time.Time
	}{
		{"whole blood keeps 42 days", ComponentWholeBlood, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)},
		{"red cells keep 42 days", ComponentRBC, time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)},
		{"platelets keep 5 days", ComponentPlatelets, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"plasma keeps one calendar year", ComponentPlasma, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpiryDate(tt.component, collected)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpiryDatePlasmaLeapYear(t *testing.T) {
	collected := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := ExpiryDate(ComponentPlasma, collected)
	require.NoError(t, err)
	// 2024 is a leap year, so a calendar year is 366 days here
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, 366*24*time.Hour, got.Sub(collected))
}

func TestExpiryDateUnknownComponent(t *testing.T) {
	_, err := ExpiryDate(ComponentType("cryo"), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownComponentType))
}

func TestExpiryDateProperties(t *testing.T) {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	rapid.Check(t, func(t *rapid.T) {
		collected := base.Add(time.Duration(rapid.Int64Range(0, 40*365*24).Draw(t, "hours")) * time.Hour)
		component := rapid.SampledFrom(ComponentTypes()).Draw(t, "component")

		expiry, err := ExpiryDate(component, collected)
		require.NoError(t, err)
		require.True(t, expiry.After(collected))

		switch component {
		case ComponentWholeBlood, ComponentRBC:
			require.Equal(t, 42*24*time.Hour, expiry.Sub(collected))
		case ComponentPlatelets:
			require.Equal(t, 5*24*time.Hour, expiry.Sub(collected))
		case ComponentPlasma:
			require.Equal(t, collected.AddDate(1, 0, 0), expiry)
		}
	})
}

func TestExpiryDateRejectsAnyUnknownComponent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z_]{1,12}`).Draw(t, "name")
		c := ComponentType(name)
		if c.Valid() {
			t.Skip("known component")
		}
		_, err := ExpiryDate(c, time.Now())
		require.ErrorIs(t, err, ErrUnknownComponentType)
	})
}

func TestShelfLives(t *testing.T) {
	lives := ShelfLives()
	require.Len(t, lives, 4)
	assert.Equal(t, ShelfLife{ComponentType: ComponentWholeBlood, Days: 42}, lives[0])
	assert.Equal(t, ShelfLife{ComponentType: ComponentPlasma, Years: 1}, lives[2])
}

package domain

import (
	"fmt"
	"time"
)

// ShelfLife describes how long a component keeps after collection.
type ShelfLife struct {
	ComponentType ComponentType `json:"component_type"`
	Days          int           `json:"days,omitempty"`
	Years         int           `json:"years,omitempty"`
}

var shelfLives = map[ComponentType]ShelfLife{
	ComponentWholeBlood: {ComponentType: ComponentWholeBlood, Days: 42},
	ComponentRBC:        {ComponentType: ComponentRBC, Days: 42},
	ComponentPlatelets:  {ComponentType: ComponentPlatelets, Days: 5},
	// frozen plasma is dated by calendar year, not by 365 days
	ComponentPlasma: {ComponentType: ComponentPlasma, Years: 1},
}

// ShelfLifeOf returns the policy entry for a component.
func ShelfLifeOf(c ComponentType) (ShelfLife, error) {
	sl, ok := shelfLives[c]
	if !ok {
		return ShelfLife{}, fmt.Errorf("%w: %q", ErrUnknownComponentType, c)
	}
	return sl, nil
}

// ShelfLives lists the policy in component display order.
func ShelfLives() []ShelfLife {
	out := make([]ShelfLife, 0, len(componentTypes))
	for _, c := range componentTypes {
		out = append(out, shelfLives[c])
	}
	return out
}

// ExpiryDate computes the expiry of a unit from its component and collection date.
// It is evaluated once when the unit is created.
func ExpiryDate(c ComponentType, collectedAt time.Time) (time.Time, error) {
	sl, err := ShelfLifeOf(c)
	if err != nil {
		return time.Time{}, err
	}
	return collectedAt.AddDate(sl.Years, 0, sl.Days), nil
}

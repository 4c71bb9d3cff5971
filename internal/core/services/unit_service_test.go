package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bloodbank/internal/core/domain"

	"github.com/stretchr/testify/suite"
)

type UnitServiceSuite struct {
	suite.Suite
	h *harness
}

func TestUnitServiceSuite(t *testing.T) {
	suite.Run(t, new(UnitServiceSuite))
}

func (s *UnitServiceSuite) SetupTest() {
	s.h = newHarness(s.T(), time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	s.h.putDonor(s.T(), "d-1", domain.BloodTypeOPos, true)
}

func (s *UnitServiceSuite) input() CreateUnitInput {
	return CreateUnitInput{
		DonorID:         "d-1",
		BloodType:       "O+",
		ComponentType:   "rbc",
		VolumeML:        300,
		CollectionDate:  day(2024, 3, 1),
		StorageLocation: "fridge-2",
	}
}

func (s *UnitServiceSuite) TestCreate() {
	s.Run("derives expiry and starts available", func() {
		unit, err := s.h.units.Create(s.h.ctx, s.input())
		s.Require().NoError(err)

		s.Equal(domain.StatusAvailable, unit.Status)
		s.Equal(day(2024, 4, 12), unit.ExpiresAt)
		s.Equal(int64(1), unit.Version)
		s.Regexp(`^BU-20240301-[0-9A-F]{8}$`, unit.UnitNumber)
		s.Equal(1, s.h.events.count(EventUnitCreated))

		stored, err := s.h.units.Get(s.h.ctx, unit.UnitNumber)
		s.Require().NoError(err)
		s.Equal(unit.ExpiresAt, stored.ExpiresAt)
	})

	s.Run("unknown component type creates nothing", func() {
		in := s.input()
		in.ComponentType = "cryo"
		_, err := s.h.units.Create(s.h.ctx, in)
		s.ErrorIs(err, domain.ErrUnknownComponentType)

		_, total, err := s.h.units.Page(s.h.ctx, domain.UnitFilter{ComponentType: "cryo"}, 0, 10)
		s.Require().NoError(err)
		s.Zero(total)
	})

	s.Run("validation failures", func() {
		cases := map[string]func(*CreateUnitInput){
			"blood type":     func(in *CreateUnitInput) { in.BloodType = "C+" },
			"volume":         func(in *CreateUnitInput) { in.VolumeML = 0 },
			"future date":    func(in *CreateUnitInput) { in.CollectionDate = day(2024, 3, 11) },
			"missing date":   func(in *CreateUnitInput) { in.CollectionDate = time.Time{} },
			"location":       func(in *CreateUnitInput) { in.StorageLocation = " " },
			"lab results":    func(in *CreateUnitInput) { in.LabResults = json.RawMessage(`{broken`) },
			"donor mismatch": func(in *CreateUnitInput) { in.BloodType = "A+" },
			"missing donor":  func(in *CreateUnitInput) { in.DonorID = "" },
		}
		for name, mutate := range cases {
			in := s.input()
			mutate(&in)
			_, err := s.h.units.Create(s.h.ctx, in)
			s.ErrorIs(err, domain.ErrValidation, name)
		}
	})

	s.Run("unknown donor", func() {
		in := s.input()
		in.DonorID = "ghost"
		_, err := s.h.units.Create(s.h.ctx, in)
		s.ErrorIs(err, domain.ErrNotFound)
	})

	s.Run("retries a colliding unit number", func() {
		calls := 0
		s.h.units.newUnitNumber = func(time.Time) string {
			calls++
			if calls == 1 {
				return "BU-TAKEN"
			}
			return fmt.Sprintf("BU-FREE-%d", calls)
		}
		defer func() { s.h.units.newUnitNumber = defaultUnitNumber }()
		s.h.putUnit(s.T(), "BU-TAKEN", domain.BloodTypeOPos, domain.ComponentRBC, day(2024, 3, 1))

		unit, err := s.h.units.Create(s.h.ctx, s.input())
		s.Require().NoError(err)
		s.Equal("BU-FREE-2", unit.UnitNumber)
	})
}

func (s *UnitServiceSuite) TestTransition() {
	s.Run("applies a legal move and records history", func() {
		// expired on 2024-02-26
		s.h.putUnit(s.T(), "U-1", domain.BloodTypeOPos, domain.ComponentRBC, day(2024, 1, 15))

		unit, err := s.h.units.Transition(s.h.ctx, "U-1", domain.StatusExpired)
		s.Require().NoError(err)
		s.Equal(domain.StatusExpired, unit.Status)
		s.Equal(int64(2), unit.Version)

		unit, err = s.h.units.Discard(s.h.ctx, "U-1")
		s.Require().NoError(err)
		s.Equal(domain.StatusDiscard, unit.Status)

		history, err := s.h.units.History(s.h.ctx, "U-1")
		s.Require().NoError(err)
		s.Require().Len(history, 2)
		s.Equal(domain.StatusAvailable, history[0].From)
		s.Equal(domain.StatusDiscard, history[1].To)
	})

	s.Run("illegal move names both statuses and leaves the unit alone", func() {
		s.h.putUnit(s.T(), "U-2", domain.BloodTypeOPos, domain.ComponentRBC, day(2024, 3, 1))
		_, err := s.h.units.Discard(s.h.ctx, "U-2")
		s.Require().NoError(err)

		_, err = s.h.units.Transition(s.h.ctx, "U-2", domain.StatusAvailable)
		var te *domain.TransitionError
		s.Require().ErrorAs(err, &te)
		s.Equal(domain.StatusDiscard, te.From)
		s.Equal(domain.StatusAvailable, te.To)
		s.Equal(domain.StatusDiscard, s.h.status(s.T(), "U-2"))
	})

	s.Run("reserved units move only through their reservation", func() {
		s.h.putUnit(s.T(), "U-3", domain.BloodTypeOPos, domain.ComponentRBC, day(2024, 3, 1))
		_, err := s.h.units.Transition(s.h.ctx, "U-3", domain.StatusReserved)
		s.ErrorIs(err, domain.ErrValidation)

		_, err = s.h.allocation.Reserve(s.h.ctx, ReserveInput{RequestID: "r-3", BloodType: "O+", ComponentType: "rbc", UnitsNeeded: 1})
		s.Require().NoError(err)

		_, err = s.h.units.Transition(s.h.ctx, "U-3", domain.StatusAvailable)
		s.ErrorIs(err, domain.ErrConflict)
		_, err = s.h.units.Discard(s.h.ctx, "U-3")
		s.ErrorIs(err, domain.ErrInvalidTransition)
		s.Equal(domain.StatusReserved, s.h.status(s.T(), "U-3"))
	})

	s.Run("a unit is not expired before its date", func() {
		s.h.putUnit(s.T(), "U-4", domain.BloodTypeOPos, domain.ComponentWholeBlood, day(2024, 2, 28))

		_, err := s.h.units.Transition(s.h.ctx, "U-4", domain.StatusExpired)
		s.ErrorIs(err, domain.ErrConflict)
		s.Equal(domain.StatusAvailable, s.h.status(s.T(), "U-4"))

		// whole blood collected 2024-02-28 keeps until 2024-04-10
		s.h.clock.Set(day(2024, 4, 10))
		unit, err := s.h.units.Transition(s.h.ctx, "U-4", domain.StatusExpired)
		s.Require().NoError(err)
		s.Equal(domain.StatusExpired, unit.Status)
	})

	s.Run("missing unit", func() {
		_, err := s.h.units.Transition(s.h.ctx, "nope", domain.StatusDiscard)
		s.ErrorIs(err, domain.ErrNotFound)
		_, err = s.h.units.History(s.h.ctx, "nope")
		s.ErrorIs(err, domain.ErrNotFound)
	})
}

func (s *UnitServiceSuite) TestConcurrentTransitionsSerialize() {
	s.h.putUnit(s.T(), "U-RACE", domain.BloodTypeOPos, domain.ComponentRBC, day(2024, 1, 15))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.h.units.Transition(context.Background(), "U-RACE", domain.StatusExpired)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInvalidTransition) {
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	history, err := s.h.units.History(s.h.ctx, "U-RACE")
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *UnitServiceSuite) TestFind() {
	for i := 0; i < 7; i++ {
		bt := domain.BloodTypeOPos
		if i%2 == 1 {
			bt = domain.BloodTypeANeg
		}
		s.h.putUnit(s.T(), fmt.Sprintf("U-%02d", i), bt, domain.ComponentPlasma, day(2024, 3, 1))
	}
	s.h.units.findPageSize = 2

	collect := func(f domain.UnitFilter) []string {
		var out []string
		for u, err := range s.h.units.Find(s.h.ctx, f) {
			s.Require().NoError(err)
			out = append(out, u.UnitNumber)
		}
		return out
	}

	s.Run("pages lazily through every match", func() {
		s.Equal([]string{"U-00", "U-02", "U-04", "U-06"}, collect(domain.UnitFilter{BloodType: domain.BloodTypeOPos}))
	})

	s.Run("is restartable", func() {
		seq := s.h.units.Find(s.h.ctx, domain.UnitFilter{BloodType: domain.BloodTypeANeg})
		var first, second []string
		for u := range seq {
			first = append(first, u.UnitNumber)
		}
		for u := range seq {
			second = append(second, u.UnitNumber)
		}
		s.Equal([]string{"U-01", "U-03", "U-05"}, first)
		s.Equal(first, second)
	})

	s.Run("stops when the caller breaks", func() {
		n := 0
		for range s.h.units.Find(s.h.ctx, domain.UnitFilter{}) {
			n++
			if n == 3 {
				break
			}
		}
		s.Equal(3, n)
	})

	s.Run("no match yields nothing", func() {
		s.Empty(collect(domain.UnitFilter{Status: domain.StatusUsed}))
	})
}

func (s *UnitServiceSuite) TestNewUnitFilter() {
	f, err := NewUnitFilter("o+", "Plasma", "AVAILABLE")
	s.Require().NoError(err)
	s.Equal(domain.UnitFilter{BloodType: domain.BloodTypeOPos, ComponentType: domain.ComponentPlasma, Status: domain.StatusAvailable}, f)

	_, err = NewUnitFilter("", "cryo", "")
	s.ErrorIs(err, domain.ErrUnknownComponentType)
	_, err = NewUnitFilter("", "", "lost")
	s.ErrorIs(err, domain.ErrValidation)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"bloodbank/internal/core/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultSweepParallelism = 8

// SweepResult summarises one expiry sweep
type SweepResult struct {
	Scanned      int       `json:"scanned"`
	Transitioned int       `json:"transitioned_count"`
	Failed       int       `json:"failed"`
	RanAt        time.Time `json:"ran_at"`
}

// HoldBreaker gives up the reservation that holds a unit past its expiry date
type HoldBreaker interface {
	BreakHold(ctx context.Context, requestID string, unit domain.BloodUnit) (bool, error)
}

// SweepService moves past-date units to expired. It is triggered from outside
// (cron, admin endpoint) and is safe to run repeatedly or concurrently.
type SweepService struct {
	units       *UnitService
	holds       HoldBreaker
	parallelism int
	group       singleflight.Group
	options
}

// NewSweepService creates a new sweep service
func NewSweepService(units *UnitService, holds HoldBreaker, opts ...Option) *SweepService {
	return &SweepService{
		units:       units,
		holds:       holds,
		parallelism: defaultSweepParallelism,
		options:     newOptions(opts),
	}
}

// Run sweeps once. Overlapping calls share the in-flight sweep's result.
func (s *SweepService) Run(ctx context.Context) (SweepResult, error) {
	v, err, _ := s.group.Do("sweep", func() (interface{}, error) {
		return s.run(ctx)
	})
	if err != nil {
		return SweepResult{}, err
	}
	return v.(SweepResult), nil
}

func (s *SweepService) run(ctx context.Context) (SweepResult, error) {
	ctx, span := s.tracer.Start(ctx, "SweepService.Run")
	defer span.End()

	started := time.Now()
	now := s.clock.Now()
	candidates, err := s.units.units.ListExpiring(ctx, now)
	if err != nil {
		s.logger.Error("expiry sweep could not list units", zap.Error(err))
		return SweepResult{}, err
	}

	var transitioned, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, unit := range candidates {
		unit := unit
		g.Go(func() error {
			err := s.expire(ctx, unit, now)
			switch {
			case err == nil:
				transitioned.Add(1)
			case errors.Is(err, errSkip):
			default:
				failed.Add(1)
				s.logger.Warn("expiry sweep skipped unit",
					zap.String("unit_number", unit.UnitNumber),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := SweepResult{
		Scanned:      len(candidates),
		Transitioned: int(transitioned.Load()),
		Failed:       int(failed.Load()),
		RanAt:        now,
	}
	span.SetAttributes(
		attribute.Int("scanned", result.Scanned),
		attribute.Int("transitioned", result.Transitioned),
		attribute.Int("failed", result.Failed),
	)
	s.metrics.SweepCompleted(result.Transitioned, result.Failed, time.Since(started).Seconds())
	if result.Transitioned > 0 || result.Failed > 0 {
		s.events.Publish(ctx, Event{
			Type:    EventSweepCompleted,
			Subject: "expiry",
			Data: map[string]interface{}{
				"transitioned_count": result.Transitioned,
				"failed":             result.Failed,
			},
			At: now,
		})
	}
	s.logger.Info("expiry sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("transitioned", result.Transitioned),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// errHeld stops a guard that found the unit inside a live reservation
var errHeld = errors.New("unit is held by a reservation")

// expire moves one unit to expired. A reserved unit first breaks its whole
// reservation, so the request never goes on with fewer units than it asked for.
func (s *SweepService) expire(ctx context.Context, unit domain.BloodUnit, now time.Time) error {
	// request whose reservation record is gone, so its hold no longer counts
	var orphanedBy string
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		var heldBy string
		_, err := s.units.apply(ctx, unit.UnitNumber, domain.StatusExpired, "", "expiry date reached", func(cur domain.BloodUnit) error {
			if cur.Status != domain.StatusAvailable && cur.Status != domain.StatusReserved {
				return errSkip
			}
			if !cur.ExpiredAt(now) {
				return errSkip
			}
			if cur.Status == domain.StatusReserved && cur.ReservedFor != "" && cur.ReservedFor != orphanedBy {
				heldBy = cur.ReservedFor
				return errHeld
			}
			return nil
		})
		if !errors.Is(err, errHeld) {
			return err
		}
		if s.holds == nil {
			return fmt.Errorf("%w: unit %s is held by request %s", domain.ErrConflict, unit.UnitNumber, heldBy)
		}

		found, err := s.holds.BreakHold(ctx, heldBy, unit)
		if err != nil && !found {
			return err
		}
		if err != nil {
			s.logger.Warn("reservation broken with failures",
				zap.String("request_id", heldBy),
				zap.String("unit_number", unit.UnitNumber),
				zap.Error(err),
			)
		}
		if !found {
			orphanedBy = heldBy
		}
	}
	return fmt.Errorf("%w: unit %s kept changing while being expired", domain.ErrConflict, unit.UnitNumber)
}

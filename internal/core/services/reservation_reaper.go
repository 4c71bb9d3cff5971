package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReservationReaper periodically releases reservations whose hold has run out
type ReservationReaper struct {
	allocation *AllocationService
	interval   time.Duration
	timeout    time.Duration
	logger     *zap.Logger
	stopChan   chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

// NewReservationReaper creates a new reaper
func NewReservationReaper(allocation *AllocationService, interval time.Duration, logger *zap.Logger) *ReservationReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReservationReaper{
		allocation: allocation,
		interval:   interval,
		timeout:    30 * time.Second,
		logger:     logger,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the reaper loop
func (r *ReservationReaper) Start() {
	r.logger.Info("reservation reaper started", zap.Duration("interval", r.interval))
	go r.runLoop()
}

// Stop ends the loop and waits for an in-flight pass
func (r *ReservationReaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		<-r.done
		r.logger.Info("reservation reaper stopped")
	})
}

func (r *ReservationReaper) runLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reap()
		case <-r.stopChan:
			return
		}
	}
}

func (r *ReservationReaper) reap() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	n, err := r.allocation.ReleaseExpiredHolds(ctx)
	if err != nil {
		r.logger.Error("reservation reaper pass failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("released expired reservation holds", zap.Int("count", n))
	}
}

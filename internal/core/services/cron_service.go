package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronService is the scheduler that triggers the expiry sweep and the
// eligibility restore. Either job can be turned off with an empty spec.
type CronService struct {
	cron    *cron.Cron
	sweep   *SweepService
	donors  *DonorService
	timeout time.Duration
	logger  *zap.Logger
}

// NewCronService creates a new scheduler
func NewCronService(sweep *SweepService, donors *DonorService, logger *zap.Logger) *CronService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronService{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
		sweep:   sweep,
		donors:  donors,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start(sweepSpec, eligibilitySpec string) error {
	if sweepSpec != "" && s.sweep != nil {
		if _, err := s.cron.AddFunc(sweepSpec, s.runSweep); err != nil {
			return fmt.Errorf("schedule expiry sweep %q: %w", sweepSpec, err)
		}
		s.logger.Info("expiry sweep scheduled", zap.String("spec", sweepSpec))
	}
	if eligibilitySpec != "" && s.donors != nil {
		if _, err := s.cron.AddFunc(eligibilitySpec, s.runEligibility); err != nil {
			return fmt.Errorf("schedule eligibility restore %q: %w", eligibilitySpec, err)
		}
		s.logger.Info("eligibility restore scheduled", zap.String("spec", eligibilitySpec))
	}
	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *CronService) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.sweep.Run(ctx); err != nil {
		s.logger.Error("scheduled expiry sweep failed", zap.Error(err))
	}
}

func (s *CronService) runEligibility() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.donors.RestoreEligibility(ctx); err != nil {
		s.logger.Error("scheduled eligibility restore failed", zap.Error(err))
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bloodbank/internal/adapters/persistence/repositories"
	"bloodbank/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestService drives hospital requests and keeps their reservations in step
type RequestService struct {
	requests   repositories.RequestRepository
	allocation *AllocationService
	options
}

// NewRequestService creates a new request service and subscribes to hold expiry
func NewRequestService(requests repositories.RequestRepository, allocation *AllocationService, opts ...Option) *RequestService {
	s := &RequestService{
		requests:   requests,
		allocation: allocation,
		options:    newOptions(opts),
	}
	allocation.OnHoldExpired(s.holdExpired)
	return s
}

// CreateRequestInput represents a hospital request
type CreateRequestInput struct {
	Hospital      string `json:"hospital"`
	BloodType     string `json:"blood_type"`
	ComponentType string `json:"component_type"`
	UnitsNeeded   int    `json:"units_needed"`
}

// Create files a pending request
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*domain.Request, error) {
	hospital := strings.TrimSpace(in.Hospital)
	if hospital == "" {
		return nil, domain.NewValidationError("hospital", "is required")
	}
	bloodType, err := domain.ParseBloodType(in.BloodType)
	if err != nil {
		return nil, err
	}
	component := domain.ComponentWholeBlood
	if strings.TrimSpace(in.ComponentType) != "" {
		if component, err = domain.ParseComponentType(in.ComponentType); err != nil {
			return nil, err
		}
	}
	if in.UnitsNeeded <= 0 {
		return nil, domain.NewValidationError("units_needed", "must be positive")
	}

	now := s.clock.Now()
	req := &domain.Request{
		ID:            uuid.NewString(),
		Hospital:      hospital,
		BloodType:     bloodType,
		ComponentType: component,
		UnitsNeeded:   in.UnitsNeeded,
		Status:        domain.RequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.logger.Info("request filed",
		zap.String("request_id", req.ID),
		zap.String("hospital", hospital),
		zap.String("blood_type", string(bloodType)),
		zap.Int("units_needed", in.UnitsNeeded),
	)
	return req, nil
}

// Get returns a request by id
func (s *RequestService) Get(ctx context.Context, id string) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return req, nil
}

// List returns a page of requests, optionally narrowed to one status
func (s *RequestService) List(ctx context.Context, status domain.RequestStatus, offset, limit int) ([]domain.Request, int64, error) {
	return s.requests.List(ctx, status, offset, limit)
}

// Approve reserves the units first. On a shortage the request stays pending.
func (s *RequestService) Approve(ctx context.Context, id string) (*domain.Request, *domain.Reservation, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !req.Status.CanTransitionTo(domain.RequestApproved) {
		return nil, nil, &domain.RequestTransitionError{RequestID: id, From: req.Status, To: domain.RequestApproved}
	}

	res, err := s.allocation.Reserve(ctx, ReserveInput{
		RequestID:     req.ID,
		BloodType:     string(req.BloodType),
		ComponentType: string(req.ComponentType),
		UnitsNeeded:   req.UnitsNeeded,
	})
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.move(ctx, req, domain.RequestApproved, "")
	if err != nil {
		if _, relErr := s.allocation.Release(context.WithoutCancel(ctx), req.ID); relErr != nil {
			s.logger.Error("could not undo reservation", zap.String("request_id", req.ID), zap.Error(relErr))
		}
		return nil, nil, err
	}
	return updated, res, nil
}

// Fulfill issues the reserved units and closes the request
func (s *RequestService) Fulfill(ctx context.Context, id string) (*domain.Request, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.RequestFulfilled) {
		return nil, &domain.RequestTransitionError{RequestID: id, From: req.Status, To: domain.RequestFulfilled}
	}
	if err := s.allocation.HandleRequestStatusChange(ctx, id, domain.RequestFulfilled); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: request %s has no active reservation", domain.ErrConflict, id)
		}
		return nil, err
	}
	return s.move(ctx, req, domain.RequestFulfilled, "")
}

// Reject closes the request and gives back any held units
func (s *RequestService) Reject(ctx context.Context, id, reason string) (*domain.Request, error) {
	return s.close(ctx, id, domain.RequestRejected, reason)
}

// Cancel closes the request on the hospital's behalf
func (s *RequestService) Cancel(ctx context.Context, id, reason string) (*domain.Request, error) {
	return s.close(ctx, id, domain.RequestCancelled, reason)
}

func (s *RequestService) close(ctx context.Context, id string, to domain.RequestStatus, reason string) (*domain.Request, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.move(ctx, req, to, reason)
	if err != nil {
		return nil, err
	}
	if err := s.allocation.HandleRequestStatusChange(ctx, id, to); err != nil {
		s.logger.Warn("request closed but units were not all released", zap.String("request_id", id), zap.Error(err))
	}
	return updated, nil
}

// holdExpired sends an approved request back to pending once its units are gone
func (s *RequestService) holdExpired(ctx context.Context, requestID string) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if !errors.Is(err, repositories.ErrRecordNotFound) {
			s.logger.Warn("hold expired for unreadable request", zap.String("request_id", requestID), zap.Error(err))
		}
		return
	}
	if req.Status != domain.RequestApproved {
		return
	}
	if _, err := s.move(ctx, req, domain.RequestPending, "reservation hold expired"); err != nil {
		s.logger.Warn("could not reopen request", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *RequestService) move(ctx context.Context, req *domain.Request, to domain.RequestStatus, reason string) (*domain.Request, error) {
	if !req.Status.CanTransitionTo(to) {
		return nil, &domain.RequestTransitionError{RequestID: req.ID, From: req.Status, To: to}
	}
	now := s.clock.Now()
	updated, err := s.requests.UpdateStatus(ctx, req.ID, req.Status, to, reason, now)
	if err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: request %s changed while moving to %s", domain.ErrConflict, req.ID, to)
		}
		return nil, notFound(err, "request", req.ID)
	}

	s.events.Publish(ctx, Event{
		Type:    EventRequestStatusChanged,
		Subject: req.ID,
		Data: map[string]interface{}{
			"from":   req.Status,
			"to":     to,
			"reason": reason,
		},
		At: now,
	})
	s.logger.Info("request status changed",
		zap.String("request_id", req.ID),
		zap.String("from", string(req.Status)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

package domain

import (
	"errors"
	"fmt"
)

// Core error taxonomy. Typed errors below unwrap to these so callers can
// branch with errors.Is and pull detail out with errors.As.
var (
	ErrValidation           = errors.New("validation failed")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrNotFound             = errors.New("resource not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrDonorIneligible      = errors.New("donor is not eligible to donate")
	ErrUnknownComponentType = errors.New("unknown component type")
	ErrConflict             = errors.New("conflicting state")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError names the status a unit was in and the status that was refused.
type TransitionError struct {
	UnitNumber string
	From       UnitStatus
	To         UnitStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("unit %s cannot move from %s to %s", e.UnitNumber, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError is an expected business outcome, not a fault.
type InsufficientStockError struct {
	BloodType     BloodType
	ComponentType ComponentType
	Requested     int
	Available     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient %s %s stock: available %d, requested %d",
		e.BloodType, e.ComponentType, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IneligibleDonorError carries the donor whose donation was refused.
type IneligibleDonorError struct {
	DonorID string
}

func (e *IneligibleDonorError) Error() string {
	return fmt.Sprintf("donor %s is not eligible to donate", e.DonorID)
}

func (e *IneligibleDonorError) Unwrap() error { return ErrDonorIneligible }

// RequestTransitionError is returned when a request status change is not allowed.
type RequestTransitionError struct {
	RequestID string
	From      RequestStatus
	To        RequestStatus
}

func (e *RequestTransitionError) Error() string {
	return fmt.Sprintf("request %s cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *RequestTransitionError) Unwrap() error { return ErrInvalidTransition }

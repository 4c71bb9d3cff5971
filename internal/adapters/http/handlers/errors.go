package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"bloodbank/internal/core/domain"
	"bloodbank/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Error codes returned next to the message
const (
	codeValidation       = "validation_error"
	codeUnknownComponent = "unknown_component_type"
	codeNotFound         = "not_found"
	codeInvalidTransit   = "invalid_transition"
	codeInsufficient     = "insufficient_stock"
	codeDonorIneligible  = "donor_ineligible"
	codeConflict         = "conflict"
	codeUnavailable      = "unavailable"
)

// respondError maps the domain error taxonomy to HTTP statuses
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var (
		stock      *domain.InsufficientStockError
		validation *domain.ValidationError
		transition *domain.TransitionError
		notFound   *domain.NotFoundError
	)

	switch {
	case errors.As(err, &stock):
		return response.Fail(c, fiber.StatusConflict, codeInsufficient, err.Error(), fiber.Map{
			"blood_type":     stock.BloodType,
			"component_type": stock.ComponentType,
			"available":      stock.Available,
			"requested":      stock.Requested,
		})
	case errors.As(err, &validation):
		return response.Fail(c, fiber.StatusBadRequest, codeValidation, err.Error(), fiber.Map{
			"field": validation.Field,
		})
	case errors.Is(err, domain.ErrUnknownComponentType):
		return response.Fail(c, fiber.StatusBadRequest, codeUnknownComponent, err.Error(), nil)
	case errors.Is(err, domain.ErrValidation):
		return response.Fail(c, fiber.StatusBadRequest, codeValidation, err.Error(), nil)
	case errors.As(err, &notFound):
		return response.Fail(c, fiber.StatusNotFound, codeNotFound, err.Error(), fiber.Map{
			"kind": notFound.Kind,
			"id":   notFound.ID,
		})
	case errors.Is(err, domain.ErrNotFound):
		return response.Fail(c, fiber.StatusNotFound, codeNotFound, err.Error(), nil)
	case errors.As(err, &transition):
		return response.Fail(c, fiber.StatusConflict, codeInvalidTransit, err.Error(), fiber.Map{
			"from": transition.From,
			"to":   transition.To,
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		return response.Fail(c, fiber.StatusConflict, codeInvalidTransit, err.Error(), nil)
	case errors.Is(err, domain.ErrDonorIneligible):
		return response.Fail(c, fiber.StatusConflict, codeDonorIneligible, err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		return response.Fail(c, fiber.StatusConflict, codeConflict, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		return response.Fail(c, fiber.StatusServiceUnavailable, codeUnavailable, "Timed out, try again", nil)
	default:
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return response.InternalServerError(c, "Internal Server Error")
	}
}

// parseDate accepts 2006-01-02 or RFC 3339. Bare dates are midnight UTC.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, domain.NewValidationError(field, "is required")
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

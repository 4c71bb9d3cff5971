package handlers

import (
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ReservationHandler exposes the allocator directly, for callers that track requests elsewhere
type ReservationHandler struct {
	allocation *services.AllocationService
	logger     *zap.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(allocation *services.AllocationService, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{allocation: allocation, logger: orNop(logger)}
}

// ReserveRequest represents a reservation request body
type ReserveRequest struct {
	RequestID     string `json:"request_id"`
	BloodType     string `json:"blood_type" example:"O+"`
	ComponentType string `json:"component_type" example:"whole_blood"`
	UnitsNeeded   int    `json:"units_needed" example:"2"`
}

// Reserve holds the oldest matching units for a request, all or nothing
// @Summary Reserve units
// @Description Holds exactly units_needed units of the exact blood type, oldest collection first.
// @Tags Reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body ReserveRequest true "Reservation"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response "insufficient_stock carries available and requested"
// @Router /reservations [post]
func (h *ReservationHandler) Reserve(c *fiber.Ctx) error {
	var req ReserveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	res, err := h.allocation.Reserve(c.UserContext(), services.ReserveInput{
		RequestID:     req.RequestID,
		BloodType:     req.BloodType,
		ComponentType: req.ComponentType,
		UnitsNeeded:   req.UnitsNeeded,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "Units reserved", res)
}

// Get returns an active reservation
// @Summary Get reservation
// @Tags Reservations
// @Produce json
// @Security BearerAuth
// @Param request_id path string true "Request ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /reservations/{request_id} [get]
func (h *ReservationHandler) Get(c *fiber.Ctx) error {
	res, err := h.allocation.Get(c.UserContext(), c.Params("request_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Reservation retrieved", res)
}

// Commit issues the reserved units. A reservation can be committed or released once.
// @Summary Commit reservation
// @Tags Reservations
// @Produce json
// @Security BearerAuth
// @Param request_id path string true "Request ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /reservations/{request_id}/commit [post]
func (h *ReservationHandler) Commit(c *fiber.Ctx) error {
	res, err := h.allocation.Commit(c.UserContext(), c.Params("request_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Reservation committed", res)
}

// Release returns the reserved units to stock
// @Summary Release reservation
// @Tags Reservations
// @Produce json
// @Security BearerAuth
// @Param request_id path string true "Request ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /reservations/{request_id}/release [post]
func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	res, err := h.allocation.Release(c.UserContext(), c.Params("request_id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Reservation released", res)
}

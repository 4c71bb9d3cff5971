package handlers

import (
	"bufio"
	"encoding/json"

	"bloodbank/internal/core/domain"
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/pagination"
	"bloodbank/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UnitHandler handles blood unit endpoints
type UnitHandler struct {
	units  *services.UnitService
	logger *zap.Logger
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(units *services.UnitService, logger *zap.Logger) *UnitHandler {
	return &UnitHandler{units: units, logger: orNop(logger)}
}

// CreateUnitRequest represents unit registration request body
type CreateUnitRequest struct {
	DonorID         string          `json:"donor_id"`
	DonationID      string          `json:"donation_id"`
	BloodType       string          `json:"blood_type"`
	ComponentType   string          `json:"component_type"`
	VolumeML        int             `json:"volume_ml"`
	CollectionDate  string          `json:"collection_date" example:"2024-03-01"`
	StorageLocation string          `json:"storage_location"`
	LabResults      json.RawMessage `json:"lab_results" swaggertype:"object"`
}

// TransitionRequest represents a status change request body
type TransitionRequest struct {
	Status string `json:"status" example:"discard"`
}

// Create registers a collected unit
// @Summary Register blood unit
// @Description Register a unit as available. Expiry is derived from component type and collection date.
// @Tags Units
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateUnitRequest true "Unit data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /units [post]
func (h *UnitHandler) Create(c *fiber.Ctx) error {
	var req CreateUnitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	collected, err := parseDate("collection_date", req.CollectionDate)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	unit, err := h.units.Create(c.UserContext(), services.CreateUnitInput{
		DonorID:         req.DonorID,
		DonationID:      req.DonationID,
		BloodType:       req.BloodType,
		ComponentType:   req.ComponentType,
		VolumeML:        req.VolumeML,
		CollectionDate:  collected,
		StorageLocation: req.StorageLocation,
		LabResults:      req.LabResults,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "Unit registered", unit)
}

// Get returns one unit
// @Summary Get blood unit
// @Tags Units
// @Produce json
// @Security BearerAuth
// @Param number path string true "Unit number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /units/{number} [get]
func (h *UnitHandler) Get(c *fiber.Ctx) error {
	unit, err := h.units.Get(c.UserContext(), c.Params("number"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Unit retrieved", unit)
}

// List returns a page of units
// @Summary List blood units
// @Tags Units
// @Produce json
// @Security BearerAuth
// @Param blood_type query string false "Blood type, e.g. O+"
// @Param component_type query string false "whole_blood, rbc, plasma or platelets"
// @Param status query string false "available, reserved, used, expired or discard"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /units [get]
func (h *UnitHandler) List(c *fiber.Ctx) error {
	filter, err := services.NewUnitFilter(c.Query("blood_type"), c.Query("component_type"), c.Query("status"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	params := pagination.GetParams(c)

	units, total, err := h.units.Page(c.UserContext(), filter, params.Offset, params.Limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Paged(c, "Units retrieved", units, pagination.GetMeta(params, total))
}

// Export streams every matching unit as newline-delimited JSON
// @Summary Export blood units
// @Tags Units
// @Produce json
// @Security BearerAuth
// @Param blood_type query string false "Blood type"
// @Param component_type query string false "Component type"
// @Param status query string false "Status"
// @Success 200 {string} string "application/x-ndjson"
// @Router /units/export [get]
func (h *UnitHandler) Export(c *fiber.Ctx) error {
	filter, err := services.NewUnitFilter(c.Query("blood_type"), c.Query("component_type"), c.Query("status"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	ctx := c.UserContext()
	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		enc := json.NewEncoder(w)
		for unit, err := range h.units.Find(ctx, filter) {
			if err != nil {
				h.logger.Error("unit export aborted", zap.Error(err))
				return
			}
			if err := enc.Encode(unit); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

// History returns the status history of a unit
// @Summary Unit status history
// @Tags Units
// @Produce json
// @Security BearerAuth
// @Param number path string true "Unit number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /units/{number}/history [get]
func (h *UnitHandler) History(c *fiber.Ctx) error {
	history, err := h.units.History(c.UserContext(), c.Params("number"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "History retrieved", history)
}

// Transition changes the status of a unit that is not held by a request
// @Summary Change unit status
// @Description Units are reserved, issued and released through reservations only.
// @Tags Units
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path string true "Unit number"
// @Param body body TransitionRequest true "Target status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /units/{number}/status [patch]
func (h *UnitHandler) Transition(c *fiber.Ctx) error {
	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	target, err := domain.ParseUnitStatus(req.Status)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	unit, err := h.units.Transition(c.UserContext(), c.Params("number"), target)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Unit status changed", unit)
}

// Discard retires a unit
// @Summary Discard blood unit
// @Tags Units
// @Produce json
// @Security BearerAuth
// @Param number path string true "Unit number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /units/{number}/discard [post]
func (h *UnitHandler) Discard(c *fiber.Ctx) error {
	unit, err := h.units.Discard(c.UserContext(), c.Params("number"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Unit discarded", unit)
}

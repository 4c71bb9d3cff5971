package handlers

import (
	"bloodbank/internal/core/domain"
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// InventoryHandler handles stock dashboard and maintenance endpoints
type InventoryHandler struct {
	inventory *services.InventoryService
	sweep     *services.SweepService
	donors    *services.DonorService
	logger    *zap.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventory *services.InventoryService, sweep *services.SweepService, donors *services.DonorService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventory: inventory,
		sweep:     sweep,
		donors:    donors,
		logger:    orNop(logger),
	}
}

// Summary returns stock counts
// @Summary Inventory summary
// @Description Counts per blood type, component and status, plus units expiring soon
// @Tags Inventory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /inventory/summary [get]
func (h *InventoryHandler) Summary(c *fiber.Ctx) error {
	data, err := h.inventory.Summary(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Inventory summary retrieved", data)
}

// ShelfLife returns the expiry policy table
// @Summary Shelf life per component
// @Tags Inventory
// @Produce json
// @Success 200 {object} response.Response
// @Router /reference/shelf-life [get]
func (h *InventoryHandler) ShelfLife(c *fiber.Ctx) error {
	return response.Success(c, "Shelf life policy", domain.ShelfLives())
}

// Sweep runs the expiry sweep now (Admin only)
// @Summary Run expiry sweep
// @Description Moves every available or reserved unit past its expiry date to expired. Safe to repeat.
// @Tags Inventory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /inventory/sweep [post]
func (h *InventoryHandler) Sweep(c *fiber.Ctx) error {
	result, err := h.sweep.Run(c.UserContext())
	if err != nil {
		h.logger.Error("manual expiry sweep failed", zap.Error(err))
		return response.Error(c, fiber.StatusServiceUnavailable, "Expiry sweep could not read the unit store")
	}
	return response.Success(c, "Expiry sweep completed", result)
}

// RestoreEligibility re-applies the donor deferral rule now (Admin only)
// @Summary Restore donor eligibility
// @Tags Inventory
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /inventory/eligibility [post]
func (h *InventoryHandler) RestoreEligibility(c *fiber.Ctx) error {
	n, err := h.donors.RestoreEligibility(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Donor eligibility restored", fiber.Map{"restored": n})
}

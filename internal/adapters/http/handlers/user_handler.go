package handlers

import (
	"errors"

	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/pagination"
	"bloodbank/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StaffHandler handles staff account management (Admin only)
type StaffHandler struct {
	staff  *services.StaffService
	logger *zap.Logger
}

// NewStaffHandler creates a new staff handler
func NewStaffHandler(staff *services.StaffService, logger *zap.Logger) *StaffHandler {
	return &StaffHandler{staff: staff, logger: orNop(logger)}
}

// List returns a page of staff accounts
// @Summary List staff
// @Tags Staff
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /staff [get]
func (h *StaffHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	users, total, err := h.staff.List(c.UserContext(), params.Offset, params.Limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Paged(c, "Staff retrieved successfully", users, pagination.GetMeta(params, total))
}

// Create adds a staff account
// @Summary Create staff account
// @Tags Staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateStaffInput true "Staff account"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /staff [post]
func (h *StaffHandler) Create(c *fiber.Ctx) error {
	var in services.CreateStaffInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	user, err := h.staff.Create(c.UserContext(), &in)
	if err != nil {
		if errors.Is(err, services.ErrUserAlreadyExists) {
			return response.Conflict(c, "Username already exists")
		}
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "Staff account created", user)
}

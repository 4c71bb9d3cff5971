package handlers

import (
	"strings"

	"bloodbank/internal/core/domain"
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/pagination"
	"bloodbank/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestHandler handles hospital request endpoints
type RequestHandler struct {
	requests *services.RequestService
	logger   *zap.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requests *services.RequestService, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, logger: orNop(logger)}
}

// ReasonRequest carries an optional reason for reject and cancel
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// Create files a request
// @Summary File hospital request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateRequestInput true "Request"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /requests [post]
func (h *RequestHandler) Create(c *fiber.Ctx) error {
	var in services.CreateRequestInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req, err := h.requests.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "Request filed", req)
}

// List returns a page of requests
// @Summary List hospital requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, fulfilled, rejected or cancelled"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response
// @Router /requests [get]
func (h *RequestHandler) List(c *fiber.Ctx) error {
	var status domain.RequestStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		var err error
		if status, err = domain.ParseRequestStatus(raw); err != nil {
			return respondError(c, h.logger, err)
		}
	}
	params := pagination.GetParams(c)

	list, total, err := h.requests.List(c.UserContext(), status, params.Offset, params.Limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Paged(c, "Requests retrieved", list, pagination.GetMeta(params, total))
}

// Get returns one request
// @Summary Get hospital request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *fiber.Ctx) error {
	req, err := h.requests.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Request retrieved", req)
}

// Approve reserves units and approves the request
// @Summary Approve hospital request
// @Description Reserves the units first. On a shortage the request stays pending.
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /requests/{id}/approve [put]
func (h *RequestHandler) Approve(c *fiber.Ctx) error {
	req, res, err := h.requests.Approve(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Request approved", fiber.Map{
		"request":     req,
		"reservation": res,
	})
}

// Fulfill issues the reserved units
// @Summary Fulfill hospital request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /requests/{id}/fulfill [put]
func (h *RequestHandler) Fulfill(c *fiber.Ctx) error {
	req, err := h.requests.Fulfill(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Request fulfilled", req)
}

// Reject closes the request and releases its units
// @Summary Reject hospital request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param body body ReasonRequest false "Reason"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /requests/{id}/reject [put]
func (h *RequestHandler) Reject(c *fiber.Ctx) error {
	req, err := h.requests.Reject(c.UserContext(), c.Params("id"), reason(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Request rejected", req)
}

// Cancel closes the request on the hospital's behalf
// @Summary Cancel hospital request
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param body body ReasonRequest false "Reason"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /requests/{id}/cancel [put]
func (h *RequestHandler) Cancel(c *fiber.Ctx) error {
	req, err := h.requests.Cancel(c.UserContext(), c.Params("id"), reason(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Request cancelled", req)
}

// reason reads the optional body. An empty or malformed body means no reason.
func reason(c *fiber.Ctx) string {
	var body ReasonRequest
	if len(c.Body()) == 0 {
		return ""
	}
	if err := c.BodyParser(&body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Reason)
}

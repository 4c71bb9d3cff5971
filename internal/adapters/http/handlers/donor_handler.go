package handlers

import (
	"bloodbank/internal/core/services"
	"bloodbank/internal/pkg/pagination"
	"bloodbank/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DonorHandler handles donor endpoints
type DonorHandler struct {
	donors *services.DonorService
	logger *zap.Logger
}

// NewDonorHandler creates a new donor handler
func NewDonorHandler(donors *services.DonorService, logger *zap.Logger) *DonorHandler {
	return &DonorHandler{donors: donors, logger: orNop(logger)}
}

// DonationRequest represents a donation request body
type DonationRequest struct {
	DonationDate string `json:"donation_date" example:"2024-03-01"`
	VolumeML     int    `json:"volume_ml" example:"450"`
}

// CollectRequest records a donation and registers its unit
type CollectRequest struct {
	DonationDate    string `json:"donation_date" example:"2024-03-01"`
	VolumeML        int    `json:"volume_ml" example:"450"`
	ComponentType   string `json:"component_type" example:"whole_blood"`
	StorageLocation string `json:"storage_location" example:"FRIDGE-A"`
}

// Register adds a donor
// @Summary Register donor
// @Tags Donors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.RegisterDonorInput true "Donor"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /donors [post]
func (h *DonorHandler) Register(c *fiber.Ctx) error {
	var in services.RegisterDonorInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	donor, err := h.donors.Register(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "Donor registered", donor)
}

// List returns a page of donors
// @Summary List donors
// @Tags Donors
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response
// @Router /donors [get]
func (h *DonorHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	donors, total, err := h.donors.List(c.UserContext(), params.Offset, params.Limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Paged(c, "Donors retrieved", donors, pagination.GetMeta(params, total))
}

// Get returns one donor
// @Summary Get donor
// @Tags Donors
// @Produce json
// @Security BearerAuth
// @Param id path string true "Donor ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /donors/{id} [get]
func (h *DonorHandler) Get(c *fiber.Ctx) error {
	donor, err := h.donors.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Success(c, "Donor retrieved", donor)
}

// RecordDonation accepts a donation from an eligible donor
// @Summary Record donation
// @Description Refused with donor_ineligible when the donor may not donate yet. Nothing is recorded then.
// @Tags Donors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Donor ID"
// @Param body body DonationRequest true "Donation"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /donors/{id}/donations [post]
func (h *DonorHandler) RecordDonation(c *fiber.Ctx) error {
	var req DonationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	donatedAt, err := parseDate("donation_date", req.DonationDate)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	donation, donor, err := h.donors.RecordDonation(c.UserContext(), c.Params("id"), donatedAt, req.VolumeML)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "Donation recorded", fiber.Map{
		"donation": donation,
		"donor":    donor,
	})
}

// Collect records a donation and registers the unit it produced
// @Summary Collect unit from donor
// @Tags Donors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Donor ID"
// @Param body body CollectRequest true "Collection"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /donors/{id}/collections [post]
func (h *DonorHandler) Collect(c *fiber.Ctx) error {
	var req CollectRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	donatedAt, err := parseDate("donation_date", req.DonationDate)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	res, err := h.donors.Collect(c.UserContext(), c.Params("id"), services.CollectInput{
		DonationDate:    donatedAt,
		VolumeML:        req.VolumeML,
		ComponentType:   req.ComponentType,
		StorageLocation: req.StorageLocation,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return response.Created(c, "Unit collected", res)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"societyhub/internal/service"
)

// ListingHandler handles marketplace listing endpoints.
type ListingHandler struct {
	creation service.CreationService
	listings service.ListingService
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(creation service.CreationService, listings service.ListingService) *ListingHandler {
	return &ListingHandler{creation: creation, listings: listings}
}

// Create godoc
// @Summary Create a listing with photos
// @Tags listings
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param price formData string true "Price"
// @Param size formData string true "Plot or unit size"
// @Param contact formData string true "Contact number"
// @Param description formData string true "Description"
// @Param photos formData file true "Photos (repeatable)"
// @Success 201 {object} model.Listing
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /listings [post]
func (h *ListingHandler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	photos, err := readPhotos(c)
	if err != nil {
		return err
	}
	draft := service.ListingDraft{
		Price:       c.FormValue("price"),
		Size:        c.FormValue("size"),
		Contact:     c.FormValue("contact"),
		Description: c.FormValue("description"),
		Photos:      photos,
	}
	listing, err := h.creation.CreateListing(c.Request().Context(), p, draft)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusCreated, listing)
}

// Public godoc
// @Summary List approved listings
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Listing
// @Router /listings [get]
func (h *ListingHandler) Public(c echo.Context) error {
	listings, err := h.listings.Public(c.Request().Context())
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, listings)
}

// Mine godoc
// @Summary List the caller's listings in every status
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Listing
// @Router /listings/mine [get]
func (h *ListingHandler) Mine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	listings, err := h.listings.Mine(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, listings)
}

// Pending godoc
// @Summary List listings awaiting review
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Listing
// @Failure 403 {object} errors.ErrorResponse
// @Router /listings/pending [get]
func (h *ListingHandler) Pending(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	listings, err := h.listings.Pending(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, listings)
}

// Get godoc
// @Summary Get a listing
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Success 200 {object} model.Listing
// @Failure 404 {object} errors.ErrorResponse
// @Router /listings/{id} [get]
func (h *ListingHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	listing, err := h.listings.Get(c.Request().Context(), p, id)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, listing)
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"societyhub/internal/service"
)

// ComplaintHandler handles complaint endpoints.
type ComplaintHandler struct {
	creation   service.CreationService
	complaints service.ComplaintService
	moderation service.ModerationService
}

// NewComplaintHandler creates a new complaint handler.
func NewComplaintHandler(creation service.CreationService, complaints service.ComplaintService, moderation service.ModerationService) *ComplaintHandler {
	return &ComplaintHandler{creation: creation, complaints: complaints, moderation: moderation}
}

// Create godoc
// @Summary Raise a complaint, optionally with photos
// @Tags complaints
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param category formData string true "Category"
// @Param description formData string false "Description"
// @Param photos formData file false "Photos (repeatable)"
// @Success 201 {object} model.Complaint
// @Failure 400 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /complaints [post]
func (h *ComplaintHandler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	photos, err := readPhotos(c)
	if err != nil {
		return err
	}
	draft := service.ComplaintDraft{
		Title:       c.FormValue("title"),
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
		Photos:      photos,
	}
	complaint, err := h.creation.CreateComplaint(c.Request().Context(), p, draft)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusCreated, complaint)
}

// Mine godoc
// @Summary List the caller's complaints
// @Tags complaints
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Complaint
// @Router /complaints/mine [get]
func (h *ComplaintHandler) Mine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	complaints, err := h.complaints.Mine(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, complaints)
}

// Pending godoc
// @Summary List complaints awaiting review
// @Tags complaints
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Complaint
// @Failure 403 {object} errors.ErrorResponse
// @Router /complaints/pending [get]
func (h *ComplaintHandler) Pending(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	complaints, err := h.complaints.Pending(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, complaints)
}

// Resolve godoc
// @Summary Mark an approved complaint as resolved
// @Tags complaints
// @Produce json
// @Security BearerAuth
// @Param id path string true "Complaint ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /complaints/{id}/resolve [post]
func (h *ComplaintHandler) Resolve(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.moderation.Resolve(c.Request().Context(), id, p); err != nil {
		return respond(err)
	}
	return c.NoContent(http.StatusNoContent)
}

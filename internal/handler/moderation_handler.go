package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"societyhub/internal/model"
	"societyhub/internal/service"
)

// ModerationHandler handles approve and reject for every moderated kind.
type ModerationHandler struct {
	moderation service.ModerationService
}

// NewModerationHandler creates a new moderation handler.
func NewModerationHandler(moderation service.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

// RejectRequest carries the reason shown to the owner.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// StatusResponse reports the status a resource moved to.
type StatusResponse struct {
	ID     string       `json:"id"`
	Status model.Status `json:"status"`
}

func moderatedKind(c echo.Context) (model.Kind, error) {
	switch k := model.Kind(c.Param("kind")); k {
	case model.KindListing, model.KindComplaint, model.KindBill:
		return k, nil
	default:
		return "", badRequest("kind must be listings, complaints or bills", "INVALID_KIND")
	}
}

// Approve godoc
// @Summary Approve a pending resource
// @Tags moderation
// @Produce json
// @Security BearerAuth
// @Param kind path string true "listings, complaints or bills"
// @Param id path string true "Resource ID"
// @Success 200 {object} StatusResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /moderation/{kind}/{id}/approve [post]
func (h *ModerationHandler) Approve(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	kind, err := moderatedKind(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.moderation.Approve(c.Request().Context(), kind, id, p); err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{ID: id.String(), Status: model.StatusApproved})
}

// Reject godoc
// @Summary Reject a pending resource
// @Tags moderation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "listings, complaints or bills"
// @Param id path string true "Resource ID"
// @Param request body RejectRequest true "Rejection reason"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /moderation/{kind}/{id}/reject [post]
func (h *ModerationHandler) Reject(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	kind, err := moderatedKind(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := h.moderation.Reject(c.Request().Context(), kind, id, p, req.Reason); err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{ID: id.String(), Status: model.StatusRejected})
}

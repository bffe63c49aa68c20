package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"societyhub/internal/model"
	"societyhub/internal/service"
)

// ActivityHandler serves the recorded lifecycle of single resources.
type ActivityHandler struct {
	history service.ActivityHistory
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(history service.ActivityHistory) *ActivityHandler {
	return &ActivityHandler{history: history}
}

// History godoc
// @Summary Lifecycle entries of a resource, oldest first
// @Tags activity
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 200 {array} model.ActivityEntry
// @Failure 403 {object} errors.ErrorResponse
// @Router /listings/{id}/activity [get]
// @Router /complaints/{id}/activity [get]
// @Router /bills/{id}/activity [get]
// @Router /gate/entries/{id}/activity [get]
func (h *ActivityHandler) History(kind model.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		id, err := pathID(c)
		if err != nil {
			return err
		}
		entries, err := h.history.History(c.Request().Context(), p, kind, id)
		if err != nil {
			return respond(err)
		}
		return c.JSON(http.StatusOK, entries)
	}
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"societyhub/internal/service"
)

// GateHandler handles vehicle gate endpoints.
type GateHandler struct {
	tracker service.GateLogTracker
}

// NewGateHandler creates a new gate handler.
func NewGateHandler(tracker service.GateLogTracker) *GateHandler {
	return &GateHandler{tracker: tracker}
}

// RecordEntry godoc
// @Summary Log a vehicle entering
// @Tags gate
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.EntryRequest true "Vehicle"
// @Success 201 {object} model.GateLog
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /gate/entries [post]
func (h *GateHandler) RecordEntry(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req service.EntryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	entry, err := h.tracker.RecordEntry(c.Request().Context(), p, req)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// RecordExit godoc
// @Summary Log a vehicle leaving
// @Tags gate
// @Produce json
// @Security BearerAuth
// @Param id path string true "Gate log ID"
// @Success 200 {object} model.GateLog
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /gate/entries/{id}/exit [post]
func (h *GateHandler) RecordExit(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	closed, err := h.tracker.RecordExit(c.Request().Context(), id, p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, closed)
}

// Active godoc
// @Summary List vehicles currently inside
// @Tags gate
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.GateLog
// @Router /gate/active [get]
func (h *GateHandler) Active(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	logs, err := h.tracker.ActiveVehicles(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, logs)
}

// ByHouse godoc
// @Summary Gate logs grouped by house
// @Tags gate
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]model.GateLog
// @Router /gate/by-house [get]
func (h *GateHandler) ByHouse(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	groups, err := h.tracker.ByHouse(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, groups)
}

// Today godoc
// @Summary Entries, exits and vehicles inside for the current day
// @Tags gate
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.GateStats
// @Router /gate/stats/today [get]
func (h *GateHandler) Today(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.tracker.TodayStats(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// DailyQuery selects the DailyCounts window.
type DailyQuery struct {
	Days int `query:"days" json:"days" validate:"min=1,max=90"`
}

// Daily godoc
// @Summary Entries and exits per day
// @Tags gate
// @Produce json
// @Security BearerAuth
// @Param days query int false "Number of days including today (1-90)" default(7)
// @Success 200 {array} service.DailyCount
// @Failure 400 {object} errors.ErrorResponse
// @Router /gate/stats/daily [get]
func (h *GateHandler) Daily(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	q := DailyQuery{Days: 7}
	if err := c.Bind(&q); err != nil {
		return badRequest("days must be an integer", "INVALID_QUERY")
	}
	if err := c.Validate(&q); err != nil {
		return respond(err)
	}
	counts, err := h.tracker.DailyCounts(c.Request().Context(), p, q.Days)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, counts)
}

// Stream godoc
// @Summary Live gate view as server-sent events
// @Tags gate
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {object} service.GateSnapshot
// @Router /gate/stream [get]
func (h *GateHandler) Stream(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	watch, err := h.tracker.Watch(c.Request().Context(), p)
	if err != nil {
		return respond(err)
	}
	defer watch.Close()

	return pump(openEventStream(c, "gate"), watch.C(), func(snap service.GateSnapshot) (any, bool) {
		return snap, true
	})
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"societyhub/internal/auth"
	"societyhub/internal/errors"
	"societyhub/internal/model"
	"societyhub/internal/service"
)

// BillHandler handles bill endpoints.
type BillHandler struct {
	bills      service.BillService
	moderation service.ModerationService
	authz      auth.Authorizer
}

// NewBillHandler creates a new bill handler.
func NewBillHandler(bills service.BillService, moderation service.ModerationService, authz auth.Authorizer) *BillHandler {
	return &BillHandler{bills: bills, moderation: moderation, authz: authz}
}

// Issue godoc
// @Summary Issue a bill to a resident
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.BillDraft true "Bill data"
// @Success 201 {object} model.Bill
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /bills [post]
func (h *BillHandler) Issue(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var draft service.BillDraft
	if err := c.Bind(&draft); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	bill, err := h.bills.Issue(c.Request().Context(), p, draft)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusCreated, bill)
}

// ListForHouse godoc
// @Summary List bills of a house
// @Description Residents may only read their own house.
// @Tags bills
// @Produce json
// @Security BearerAuth
// @Param house path string true "House number"
// @Success 200 {array} model.Bill
// @Failure 403 {object} errors.ErrorResponse
// @Router /bills/house/{house} [get]
func (h *BillHandler) ListForHouse(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	house := c.Param("house")
	if p.House != house && !h.authz.IsAuthorized(c.Request().Context(), p, auth.ActionFor(model.KindBill, auth.VerbReview)) {
		return respond(&errors.UnauthorizedError{Principal: p.ID, Action: "bills.read"})
	}
	bills, err := h.bills.ListForHouse(c.Request().Context(), house)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, bills)
}

// Mine godoc
// @Summary List bills issued to the caller
// @Tags bills
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Bill
// @Router /bills/mine [get]
func (h *BillHandler) Mine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	bills, err := h.bills.ListForResident(c.Request().Context(), p.ID)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, bills)
}

// Pay godoc
// @Summary Mark an approved bill as paid
// @Tags bills
// @Produce json
// @Security BearerAuth
// @Param id path string true "Bill ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /bills/{id}/pay [post]
func (h *BillHandler) Pay(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.moderation.MarkPaid(c.Request().Context(), id, p); err != nil {
		return respond(err)
	}
	return c.NoContent(http.StatusNoContent)
}

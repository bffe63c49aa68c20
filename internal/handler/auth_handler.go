package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"societyhub/internal/auth"
	"societyhub/internal/model"
	"societyhub/internal/service"
)

// AuthHandler issues tokens for existing profiles during development.
// Production tokens come from the identity provider.
type AuthHandler struct {
	users service.UserService
	jwt   *auth.JWTService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users service.UserService, jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

// TokenRequest names the profile to act as.
type TokenRequest struct {
	ID   string     `json:"id" validate:"required,uuid"`
	Role model.Role `json:"role" validate:"required,oneof=resident guard admin"`
}

// TokenResponse represents an issued token.
type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	Principal   auth.Principal `json:"principal"`
}

// Token godoc
// @Summary Issue an access token for a seeded profile
// @Description Only available outside production.
// @Tags dev
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Profile"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /dev/token [post]
func (h *AuthHandler) Token(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := c.Validate(&req); err != nil {
		return respond(err)
	}

	profile, err := h.users.GetProfile(c.Request().Context(), req.Role, uuid.MustParse(req.ID))
	if err != nil {
		return respond(err)
	}
	p := auth.Principal{ID: profile.ID.String(), Role: profile.Role, Name: profile.Name, House: profile.HouseNo}
	token, err := h.jwt.GenerateAccessToken(p)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, Principal: p})
}

package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"societyhub/internal/model"
	"societyhub/internal/service"
)

// SeedHandler loads a fixed demo society for local development.
type SeedHandler struct {
	users service.UserService
}

// NewSeedHandler creates a new seed handler.
func NewSeedHandler(users service.UserService) *SeedHandler {
	return &SeedHandler{users: users}
}

// SeedResponse represents the seed response.
type SeedResponse struct {
	Message  string              `json:"message"`
	Count    int                 `json:"count"`
	Profiles []model.UserProfile `json:"profiles"`
}

// DemoProfiles are stable so that tokens issued for them survive a restart.
var DemoProfiles = []model.UserProfile{
	{ID: uuid.MustParse("0b7c6a52-31a4-4c1e-9d0a-5f6b2f1c0a01"), Name: "Ayesha Khan", Email: "ayesha@example.com", HouseNo: "A-12", Role: model.RoleResident},
	{ID: uuid.MustParse("0b7c6a52-31a4-4c1e-9d0a-5f6b2f1c0a02"), Name: "Bilal Ahmed", Email: "bilal@example.com", HouseNo: "B-7", Role: model.RoleResident},
	{ID: uuid.MustParse("0b7c6a52-31a4-4c1e-9d0a-5f6b2f1c0a03"), Name: "Sana Malik", Email: "sana@example.com", HouseNo: "A-12", Role: model.RoleResident},
	{ID: uuid.MustParse("0b7c6a52-31a4-4c1e-9d0a-5f6b2f1c0b01"), Name: "Gate One", Phone: "03001112233", Role: model.RoleGuard},
	{ID: uuid.MustParse("0b7c6a52-31a4-4c1e-9d0a-5f6b2f1c0c01"), Name: "Society Office", Email: "office@example.com", Role: model.RoleAdmin},
}

// SeedProfiles godoc
// @Summary Seed demo residents, guards and admins
// @Description Idempotent; only available outside production.
// @Tags dev
// @Produce json
// @Success 200 {object} SeedResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /dev/seed [post]
func (h *SeedHandler) SeedProfiles(c echo.Context) error {
	profiles := make([]model.UserProfile, len(DemoProfiles))
	copy(profiles, DemoProfiles)

	count, err := h.users.Seed(c.Request().Context(), profiles)
	if err != nil {
		return respond(err)
	}
	return c.JSON(http.StatusOK, SeedResponse{
		Message:  "profiles seeded successfully",
		Count:    count,
		Profiles: DemoProfiles,
	})
}

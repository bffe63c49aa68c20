package auth

import (
	"github.com/labstack/echo/v4"

	"societyhub/internal/model"
)

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	ID    string     `json:"id"`
	Role  model.Role `json:"role"`
	Name  string     `json:"name"`
	House string     `json:"house,omitempty"`
}

const principalKey = "principal"

// SetPrincipal stores p on the request context.
func SetPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
}

// PrincipalFromContext returns the caller set by the JWT middleware.
func PrincipalFromContext(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok && p.ID != ""
}

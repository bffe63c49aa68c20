package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societyhub/internal/model"
)

func TestRoleAuthorizer(t *testing.T) {
	authz := NewRoleAuthorizer(ParsePolicy(map[string]string{"guard": "gate.entry|gate.read"}))
	ctx := context.Background()

	tests := []struct {
		name      string
		principal Principal
		action    Action
		want      bool
	}{
		{"admin approves listings", Principal{ID: "a1", Role: model.RoleAdmin}, ActionFor(model.KindListing, VerbApprove), true},
		{"resident cannot approve", Principal{ID: "r1", Role: model.RoleResident}, ActionFor(model.KindListing, VerbApprove), false},
		{"resident creates listing", Principal{ID: "r1", Role: model.RoleResident}, ActionCreateListing, true},
		{"guard override keeps entry", Principal{ID: "g1", Role: model.RoleGuard}, ActionGateEntry, true},
		{"guard override drops exit", Principal{ID: "g1", Role: model.RoleGuard}, ActionGateExit, false},
		{"anonymous principal", Principal{Role: model.RoleAdmin}, ActionGateRead, false},
		{"unknown role", Principal{ID: "x", Role: "janitor"}, ActionGateRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, authz.IsAuthorized(ctx, tt.principal, tt.action))
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret")
	p := Principal{ID: "res-1", Role: model.RoleResident, Name: "Ayesha", House: "A-12"}

	token, err := svc.GenerateAccessToken(p)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())

	_, err = NewJWTService("other").ValidateToken(token)
	assert.Error(t, err)
}

func TestMiddlewareSetsPrincipal(t *testing.T) {
	svc := NewJWTService("secret")
	token, err := svc.GenerateAccessToken(Principal{ID: "g1", Role: model.RoleGuard, Name: "Karim"})
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.String(http.StatusOK, p.ID+":"+string(p.Role))
	}, svc.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "g1:guard", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

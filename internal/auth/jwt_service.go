package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "societyhub/internal/errors"
	"societyhub/internal/model"
)

// AccessTokenExpiry is the duration for which issued tokens are valid.
const AccessTokenExpiry = 12 * time.Hour

// Claims represents JWT claims. The subject carries the principal id.
type Claims struct {
	Role  model.Role `json:"role"`
	Name  string     `json:"name"`
	House string     `json:"house,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts validated claims to a Principal.
func (c *Claims) Principal() Principal {
	return Principal{ID: c.Subject, Role: c.Role, Name: c.Name, House: c.House}
}

// JWTService validates tokens minted by the identity provider. It can also
// mint tokens for local development and tests.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// GenerateAccessToken generates a token asserting p.
func (s *JWTService) GenerateAccessToken(p Principal) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:  p.Role,
		Name:  p.Name,
		House: p.House,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Middleware authenticates requests with a bearer token and stores the
// resulting Principal on the context.
func (s *JWTService) Middleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  s.secret,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			if claims, ok := token.Claims.(*Claims); ok {
				SetPrincipal(c, claims.Principal())
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: "missing or invalid token",
				Code:  "UNAUTHENTICATED",
			})
		},
	})
}

package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/squatlab/backend/internal/token"
)

const principalKey = "principal"

// Principal is the authenticated caller attached to the echo context.
type Principal struct {
	Username string
	Role     string
	RealName string
}

// PrincipalFrom returns the request's principal, or nil for anonymous calls.
func PrincipalFrom(c echo.Context) *Principal {
	if p, ok := c.Get(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

type Auth struct {
	Codec *token.Codec
	Skip  map[string]bool
}

func NewAuth(codec *token.Codec, skipPaths ...string) *Auth {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &Auth{Codec: codec, Skip: skip}
}

// Authenticate reads the access token from the "access" header. A missing
// header lets the request through as anonymous; handlers that need a
// principal reject those themselves. A token that is present must be a
// valid, unexpired access-category token.
func (m *Auth) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Skip[c.Request().URL.Path] {
			return next(c)
		}

		accessToken := c.Request().Header.Get("access")
		if accessToken == "" {
			return next(c)
		}

		claims, err := m.Codec.Verify(accessToken)
		if err != nil {
			if err == token.ErrExpired {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token is expired"})
			}
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid access token"})
		}
		if claims.Category != token.CategoryAccess {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid access token"})
		}

		c.Set(principalKey, &Principal{
			Username: claims.Username(),
			Role:     claims.Role,
			RealName: claims.RealName,
		})
		return next(c)
	}
}

// RequirePrincipal gates handlers that only make sense for a signed-in user.
func RequirePrincipal(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if PrincipalFrom(c) == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

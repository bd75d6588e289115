package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/service"
)

// Context keys populated by Authenticate.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextToken  = "token"
	ContextRole   = "role"
)

// Authenticator resolves a raw session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (model.User, error)
}

// Authenticate returns an Echo middleware that validates a Bearer session
// token against the session store and injects the user into the request
// context.  With required=false requests without an Authorization header
// pass through anonymously, but a header carrying a bad token is still
// rejected.
func Authenticate(authn Authenticator, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" && !required {
				return next(c)
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			u, err := authn.Authenticate(c.Request().Context(), raw)
			if err != nil {
				if errors.Is(err, service.ErrIntegrityViolation) {
					c.Logger().Warnf("session integrity violation from %s", c.RealIP())
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session integrity violation"})
				}
				if errors.Is(err, service.ErrAuthFailed) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				return err
			}

			c.Set(ContextUser, &u)
			c.Set(ContextUserID, u.ID)
			c.Set(ContextToken, raw)
			c.Set(ContextRole, string(u.Role))
			return next(c)
		}
	}
}

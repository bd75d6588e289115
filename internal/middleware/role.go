package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-festival/internal/model"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user holds one of the given account tiers.  It must run
// after Authenticate.  Anonymous callers get 401, other tiers 403.
// Program-scoped roles are checked by the services, not here.
func RequireRole(roles ...model.UserRole) echo.MiddlewareFunc {
	allowed := make(map[model.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !allowed[u.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

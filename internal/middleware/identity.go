package middleware

// identity.go holds the accessors for the identity stored by Authenticate.
// Handlers and the other middleware read the caller through these instead
// of touching context keys directly.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-festival/internal/model"
)

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c echo.Context) *model.User {
	if u, ok := c.Get(ContextUser).(*model.User); ok {
		return u
	}
	return nil
}

// CurrentToken returns the raw bearer token of the request, if any.
func CurrentToken(c echo.Context) string {
	s, _ := c.Get(ContextToken).(string)
	return s
}

// userID renders the caller for cache and rate-limit keys.  It returns
// "anon" when no user is authenticated.
func userID(c echo.Context) string {
	if u := CurrentUser(c); u != nil {
		return strconv.FormatInt(u.ID, 10)
	}
	return "anon"
}

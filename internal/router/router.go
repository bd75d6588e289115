package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-festival/internal/handler"
	"github.com/iliyamo/cinema-festival/internal/middleware"
	"github.com/iliyamo/cinema-festival/internal/model"
)

// Deps carries the shared middleware every route group needs.  Nil
// middleware are skipped.
type Deps struct {
	Authn      middleware.Authenticator
	RateLimit  echo.MiddlewareFunc // general limiter, runs after authentication
	LoginLimit echo.MiddlewareFunc // per-IP throttle on POST /v1/auth/login
	Cache      echo.MiddlewareFunc // anonymous response cache on public reads
}

// chain returns the authentication middleware followed by the limiter and
// any extras.
func (d Deps) chain(required bool, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := []echo.MiddlewareFunc{middleware.Authenticate(d.Authn, required)}
	if d.RateLimit != nil {
		out = append(out, d.RateLimit)
	}
	for _, m := range extra {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (d Deps) authed(extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return d.chain(true, extra...)
}

func (d Deps) optional(extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return d.chain(false, append([]echo.MiddlewareFunc{d.Cache}, extra...)...)
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/", handler.Health)
	e.GET("/healthz", handler.Readiness(db))
}

// RegisterAuth registers registration, login and session endpoints under
// /v1/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, d Deps) {
	g := e.Group("/v1/auth")

	public := []echo.MiddlewareFunc{}
	if d.RateLimit != nil {
		public = append(public, d.RateLimit)
	}
	g.POST("/register", a.Register, public...)
	login := public
	if d.LoginLimit != nil {
		login = append([]echo.MiddlewareFunc{d.LoginLimit}, public...)
	}
	g.POST("/login", a.Login, login...)
	g.GET("/validate-token", a.ValidateToken, public...)

	g.POST("/logout", a.Logout, d.authed()...)
	g.POST("/force-logout/:id", a.ForceLogout, d.authed(middleware.RequireRole(model.UserRoleAdmin))...)
}

// RegisterUsers registers account management under /v1/users.  Ownership
// and admin checks happen in the service.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, d Deps) {
	g := e.Group("/v1/users")
	admin := d.authed(middleware.RequireRole(model.UserRoleAdmin))

	g.GET("/me", u.Me, d.authed()...)
	g.GET("", u.List, admin...)
	g.GET("/:id", u.Get, d.authed()...)
	g.PUT("/:id", u.Update, d.authed()...)
	g.PUT("/:id/password", u.ChangePassword, d.authed()...)
	g.PUT("/:id/activate", u.Activate, admin...)
	g.PUT("/:id/deactivate", u.Deactivate, admin...)
	g.DELETE("/:id", u.Delete, d.authed()...)
}

// RegisterPrograms registers program endpoints under /v1/programs.  Reads
// accept anonymous callers; everything else requires a session.
func RegisterPrograms(e *echo.Echo, p *handler.ProgramHandler, s *handler.ScreeningHandler, d Deps) {
	g := e.Group("/v1/programs")

	g.POST("", p.Create, d.authed()...)
	g.GET("/search", p.Search, d.optional()...)
	g.GET("/:id", p.Get, d.optional()...)
	g.PUT("/:id", p.Update, d.authed()...)
	g.DELETE("/:id", p.Delete, d.authed()...)
	g.PUT("/:id/state", p.ChangeState, d.authed()...)
	g.POST("/:id/programmers", p.AddProgrammer, d.authed()...)
	g.POST("/:id/staff", p.AddStaff, d.authed()...)
	g.GET("/:id/roles", p.Roles, d.authed()...)
	g.POST("/:id/auto-reject", p.AutoReject, d.authed()...)

	g.GET("/:id/screenings/search", s.Search, d.optional()...)
}

// RegisterScreenings registers the screening workflow under /v1/screenings.
func RegisterScreenings(e *echo.Echo, s *handler.ScreeningHandler, d Deps) {
	g := e.Group("/v1/screenings")

	g.POST("", s.Create, d.authed()...)
	g.GET("/:id", s.Get, d.optional()...)
	g.PUT("/:id", s.Update, d.authed()...)
	g.DELETE("/:id", s.Withdraw, d.authed()...)
	g.POST("/:id/submit", s.Submit, d.authed()...)
	g.PUT("/:id/handler", s.AssignHandler, d.authed()...)
	g.POST("/:id/review", s.Review, d.authed()...)
	g.POST("/:id/approve", s.Approve, d.authed()...)
	g.POST("/:id/reject", s.Reject, d.authed()...)
	g.POST("/:id/final-submit", s.FinalSubmit, d.authed()...)
	g.POST("/:id/accept", s.Accept, d.authed()...)
}

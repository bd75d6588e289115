package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/middleware"
	"github.com/iliyamo/cinema-festival/internal/service"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth   *service.AuthService
	Logger *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username" validate:"required,min=5,max=50,username"`
	Password string `json:"password" validate:"required,password"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}
type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type sessionResp struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userResp  `json:"user"`
}

// Register creates an inactive account.  An admin must activate it before
// the first login.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toUser(u))
}

// Login verifies credentials and issues a fresh session.  Any earlier
// session of the user stops working.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	req.Username = strings.TrimSpace(req.Username)

	ctx, cancel := timeout(c)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, sessionResp{
		Token:     sess.Token,
		TokenType: "bearer",
		ExpiresAt: sess.ExpiresAt,
		User:      toUser(sess.User),
	})
}

// Logout invalidates the session used for this request.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, middleware.CurrentToken(c)); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// ForceLogout revokes every session of another user.  Admin only.
func (h *AuthHandler) ForceLogout(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := timeout(c)
	defer cancel()

	n, err := h.Auth.ForceLogout(ctx, currentUser(c), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "revoked": n})
}

// ValidateToken reports whether the bearer token in the request is a live
// session.  It never fails with 401 itself.
func (h *AuthHandler) ValidateToken(c echo.Context) error {
	raw := strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer "))
	if raw == "" {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}

	ctx, cancel := timeout(c)
	defer cancel()

	return c.JSON(http.StatusOK, echo.Map{"valid": h.Auth.ValidateToken(ctx, raw)})
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/service"
)

// UserHandler serves account management endpoints.
type UserHandler struct {
	Users  *service.UserService
	Logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{Users: users, Logger: logger}
}

// ----- DTOs -----

type updateUserReq struct {
	Username *string `json:"username"`
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}
type changePasswordReq struct {
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// Me returns the authenticated user.
func (h *UserHandler) Me(c echo.Context) error {
	actor := currentUser(c)
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Users.Get(ctx, actor, actor.ID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}

// List pages through all users.  Query: skip, limit.
func (h *UserHandler) List(c echo.Context) error {
	skip, limit := 0, 0
	if v := c.QueryParam("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "invalid skip")
		}
		skip = n
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "invalid limit")
		}
		limit = n
	}

	ctx, cancel := timeout(c)
	defer cancel()

	list, err := h.Users.List(ctx, currentUser(c), skip, limit)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUsers(list))
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Users.Get(ctx, currentUser(c), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}

// Update changes profile fields.  Omitted fields are kept.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Users.UpdateInfo(ctx, currentUser(c), id, service.UpdateUserInput{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Users.ChangePassword(ctx, currentUser(c), id, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// Activate and Deactivate toggle an account.  Admin only.
func (h *UserHandler) Activate(c echo.Context) error   { return h.setActive(c, true) }
func (h *UserHandler) Deactivate(c echo.Context) error { return h.setActive(c, false) }

func (h *UserHandler) setActive(c echo.Context, active bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Users.SetActive(ctx, currentUser(c), id, active)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toUser(u))
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Users.Delete(ctx, currentUser(c), id); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

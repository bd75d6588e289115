package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/repository"
	"github.com/iliyamo/cinema-festival/internal/service"
)

// ProgramHandler serves program endpoints, including the program-wide
// auto-reject of screenings.
type ProgramHandler struct {
	Programs     *service.ProgramService
	Screenings   *service.ScreeningService
	RoleResolver *service.RoleResolver
	Logger       *zap.Logger
}

func NewProgramHandler(programs *service.ProgramService, screenings *service.ScreeningService, roles *service.RoleResolver, logger *zap.Logger) *ProgramHandler {
	if programs == nil || screenings == nil || roles == nil {
		panic("nil service passed to NewProgramHandler")
	}
	return &ProgramHandler{Programs: programs, Screenings: screenings, RoleResolver: roles, Logger: logger}
}

// ----- DTOs -----

type createProgramReq struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" validate:"required"` // YYYY-MM-DD
	EndDate     string `json:"end_date" validate:"required"`   // YYYY-MM-DD
}
type updateProgramReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}
type changeStateReq struct {
	State string `json:"state" validate:"required"`
}
type grantReq struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func parseDatePtr(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	return parseDate(*raw)
}

func (h *ProgramHandler) Create(c echo.Context) error {
	var req createProgramReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	start, err := parseDate(req.StartDate)
	if err != nil || start == nil {
		return badRequest(c, "start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(req.EndDate)
	if err != nil || end == nil {
		return badRequest(c, "end_date must be YYYY-MM-DD")
	}

	ctx, cancel := timeout(c)
	defer cancel()

	p, err := h.Programs.Create(ctx, currentUser(c), service.ProgramInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   *start,
		EndDate:     *end,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toProgram(p))
}

// Search lists programs visible to the caller.  Query: name, description,
// start_from, end_until (YYYY-MM-DD), film_title, venue.
func (h *ProgramHandler) Search(c echo.Context) error {
	f := repository.ProgramFilter{
		Name:        c.QueryParam("name"),
		Description: c.QueryParam("description"),
		FilmTitle:   c.QueryParam("film_title"),
		Venue:       c.QueryParam("venue"),
	}
	var err error
	if f.StartFrom, err = parseDate(c.QueryParam("start_from")); err != nil {
		return badRequest(c, "start_from must be YYYY-MM-DD")
	}
	if f.EndUntil, err = parseDate(c.QueryParam("end_until")); err != nil {
		return badRequest(c, "end_until must be YYYY-MM-DD")
	}

	ctx, cancel := timeout(c)
	defer cancel()

	list, err := h.Programs.Search(ctx, currentUser(c), f)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toPrograms(list))
}

func (h *ProgramHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	d, err := h.Programs.Get(ctx, currentUser(c), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toProgramDetail(d))
}

func (h *ProgramHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req updateProgramReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	in := service.UpdateProgramInput{Name: req.Name, Description: req.Description}
	if in.StartDate, err = parseDatePtr(req.StartDate); err != nil {
		return badRequest(c, "start_date must be YYYY-MM-DD")
	}
	if in.EndDate, err = parseDatePtr(req.EndDate); err != nil {
		return badRequest(c, "end_date must be YYYY-MM-DD")
	}

	ctx, cancel := timeout(c)
	defer cancel()

	p, err := h.Programs.Update(ctx, currentUser(c), id, in)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toProgram(p))
}

func (h *ProgramHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Programs.Delete(ctx, currentUser(c), id); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangeState advances the program to the next state in sequence.
func (h *ProgramHandler) ChangeState(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req changeStateReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	p, err := h.Programs.ChangeState(ctx, currentUser(c), id, req.State)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toProgram(p))
}

func (h *ProgramHandler) AddProgrammer(c echo.Context) error {
	return h.grant(c, h.Programs.AddProgrammer)
}

func (h *ProgramHandler) AddStaff(c echo.Context) error {
	return h.grant(c, h.Programs.AddStaff)
}

type grantFunc func(ctx context.Context, actor *model.User, programID, userID int64) (model.ProgramRole, error)

func (h *ProgramHandler) grant(c echo.Context, fn grantFunc) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req grantReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	r, err := fn(ctx, currentUser(c), id, req.UserID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toRole(r))
}

// Roles lists the role grants of a program.  Programmers only.
func (h *ProgramHandler) Roles(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	list, err := h.Programs.ListRoles(ctx, currentUser(c), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toRoles(list))
}

// AutoReject rejects every approved screening of the program that was not
// finally submitted.  The caller must be a PROGRAMMER of the program.
func (h *ProgramHandler) AutoReject(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	actor := currentUser(c)
	ctx, cancel := timeout(c)
	defer cancel()

	if _, err := h.Programs.Get(ctx, actor, id); err != nil {
		return writeError(c, h.Logger, err)
	}
	if err := h.RoleResolver.Require(ctx, actor.ID, id, model.RoleProgrammer); err != nil {
		return writeError(c, h.Logger, err)
	}
	n, err := h.Screenings.AutoRejectNonSubmitted(ctx, id, actor.ID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"program_id": id, "rejected": n})
}

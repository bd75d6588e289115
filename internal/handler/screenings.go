package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/repository"
	"github.com/iliyamo/cinema-festival/internal/service"
)

// ScreeningHandler serves the screening workflow endpoints.
type ScreeningHandler struct {
	Screenings *service.ScreeningService
	Logger     *zap.Logger
}

func NewScreeningHandler(screenings *service.ScreeningService, logger *zap.Logger) *ScreeningHandler {
	return &ScreeningHandler{Screenings: screenings, Logger: logger}
}

// ----- DTOs -----

// Times are RFC 3339.
type createScreeningReq struct {
	ProgramID    int64      `json:"program_id" validate:"required,gt=0"`
	FilmTitle    string     `json:"film_title" validate:"required,max=200"`
	FilmCast     string     `json:"film_cast"`
	FilmGenre    string     `json:"film_genre" validate:"max=100"`
	FilmDuration int        `json:"film_duration" validate:"gte=0"`
	Venue        string     `json:"venue" validate:"max=100"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
}
type updateScreeningReq struct {
	FilmTitle    *string    `json:"film_title"`
	FilmCast     *string    `json:"film_cast"`
	FilmGenre    *string    `json:"film_genre"`
	FilmDuration *int       `json:"film_duration"`
	Venue        *string    `json:"venue"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
}
type assignHandlerReq struct {
	HandlerID int64 `json:"handler_id" validate:"required,gt=0"`
}
type reviewReq struct {
	Score    *float64 `json:"score" validate:"required"`
	Comments string   `json:"comments" validate:"required"`
}
type approveReq struct {
	Notes string `json:"notes"`
}
type rejectReq struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *ScreeningHandler) Create(c echo.Context) error {
	var req createScreeningReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	s, err := h.Screenings.Create(ctx, currentUser(c), service.ScreeningInput{
		ProgramID:    req.ProgramID,
		FilmTitle:    req.FilmTitle,
		FilmCast:     req.FilmCast,
		FilmGenre:    req.FilmGenre,
		FilmDuration: req.FilmDuration,
		Venue:        req.Venue,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, toScreening(s))
}

// Search lists the screenings of a program visible to the caller.  Query:
// title, cast, genre, start_from, start_until (RFC 3339).
func (h *ScreeningHandler) Search(c echo.Context) error {
	programID, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	f := repository.ScreeningFilter{
		Title: c.QueryParam("title"),
		Cast:  c.QueryParam("cast"),
		Genre: c.QueryParam("genre"),
	}
	if f.StartFrom, err = parseTime(c.QueryParam("start_from")); err != nil {
		return badRequest(c, "start_from must be RFC 3339")
	}
	if f.StartUntil, err = parseTime(c.QueryParam("start_until")); err != nil {
		return badRequest(c, "start_until must be RFC 3339")
	}

	ctx, cancel := timeout(c)
	defer cancel()

	list, err := h.Screenings.Search(ctx, currentUser(c), programID, f)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toScreenings(list))
}

func (h *ScreeningHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	s, err := h.Screenings.Get(ctx, currentUser(c), id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toScreening(s))
}

func (h *ScreeningHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req updateScreeningReq
	if err := bind(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	s, err := h.Screenings.Update(ctx, currentUser(c), id, service.UpdateScreeningInput{
		FilmTitle:    req.FilmTitle,
		FilmCast:     req.FilmCast,
		FilmGenre:    req.FilmGenre,
		FilmDuration: req.FilmDuration,
		Venue:        req.Venue,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toScreening(s))
}

func (h *ScreeningHandler) Withdraw(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Screenings.Withdraw(ctx, currentUser(c), id); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type screeningStep func(*ScreeningHandler, echo.Context, int64) (model.Screening, error)

// step runs a workflow operation on the screening named by :id.
func (h *ScreeningHandler) step(c echo.Context, fn screeningStep) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	s, err := fn(h, c, id)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return badRequest(c, fmt.Sprint(he.Message))
		}
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, toScreening(s))
}

func (h *ScreeningHandler) Submit(c echo.Context) error {
	return h.step(c, func(h *ScreeningHandler, c echo.Context, id int64) (model.Screening, error) {
		ctx, cancel := timeout(c)
		defer cancel()
		return h.Screenings.Submit(ctx, currentUser(c), id)
	})
}

func (h *ScreeningHandler) AssignHandler(c echo.Context) error {
	return h.step(c, func(h *ScreeningHandler, c echo.Context, id int64) (model.Screening, error) {
		var req assignHandlerReq
		if err := bind(c, &req); err != nil {
			return model.Screening{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		ctx, cancel := timeout(c)
		defer cancel()
		return h.Screenings.AssignHandler(ctx, currentUser(c), id, req.HandlerID)
	})
}

func (h *ScreeningHandler) Review(c echo.Context) error {
	return h.step(c, func(h *ScreeningHandler, c echo.Context, id int64) (model.Screening, error) {
		var req reviewReq
		if err := bind(c, &req); err != nil {
			return model.Screening{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		ctx, cancel := timeout(c)
		defer cancel()
		return h.Screenings.Review(ctx, currentUser(c), id, *req.Score, req.Comments)
	})
}

func (h *ScreeningHandler) Approve(c echo.Context) error {
	return h.step(c, func(h *ScreeningHandler, c echo.Context, id int64) (model.Screening, error) {
		var req approveReq
		if err := bind(c, &req); err != nil {
			return model.Screening{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		ctx, cancel := timeout(c)
		defer cancel()
		return h.Screenings.Approve(ctx, currentUser(c), id, req.Notes)
	})
}

func (h *ScreeningHandler) Reject(c echo.Context) error {
	return h.step(c, func(h *ScreeningHandler, c echo.Context, id int64) (model.Screening, error) {
		var req rejectReq
		if err := bind(c, &req); err != nil {
			return model.Screening{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		ctx, cancel := timeout(c)
		defer cancel()
		return h.Screenings.Reject(ctx, currentUser(c), id, req.Reason)
	})
}

func (h *ScreeningHandler) FinalSubmit(c echo.Context) error {
	return h.step(c, func(h *ScreeningHandler, c echo.Context, id int64) (model.Screening, error) {
		ctx, cancel := timeout(c)
		defer cancel()
		return h.Screenings.FinalSubmit(ctx, currentUser(c), id)
	})
}

func (h *ScreeningHandler) Accept(c echo.Context) error {
	return h.step(c, func(h *ScreeningHandler, c echo.Context, id int64) (model.Screening, error) {
		ctx, cancel := timeout(c)
		defer cancel()
		return h.Screenings.Accept(ctx, currentUser(c), id)
	})
}

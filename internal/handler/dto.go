package handler

import (
	"time"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/service"
)

// ----- response DTOs -----

type userResp struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUser(u model.User) userResp {
	return userResp{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toUsers(list []model.User) []userResp {
	out := make([]userResp, 0, len(list))
	for _, u := range list {
		out = append(out, toUser(u))
	}
	return out
}

type roleResp struct {
	UserID     int64     `json:"user_id"`
	ProgramID  int64     `json:"program_id"`
	Role       string    `json:"role"`
	AssignedAt time.Time `json:"assigned_at"`
}

func toRole(r model.ProgramRole) roleResp {
	return roleResp{UserID: r.UserID, ProgramID: r.ProgramID, Role: string(r.Role), AssignedAt: r.AssignedAt}
}

func toRoles(list []model.ProgramRole) []roleResp {
	out := make([]roleResp, 0, len(list))
	for _, r := range list {
		out = append(out, toRole(r))
	}
	return out
}

type programResp struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Roles       []roleResp `json:"roles,omitempty"`
}

func toProgram(p model.Program) programResp {
	return programResp{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate.Format(dateLayout),
		EndDate:     p.EndDate.Format(dateLayout),
		State:       string(p.State),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProgramDetail(d service.ProgramDetail) programResp {
	out := toProgram(d.Program)
	if len(d.Roles) > 0 {
		out.Roles = toRoles(d.Roles)
	}
	return out
}

func toPrograms(list []model.Program) []programResp {
	out := make([]programResp, 0, len(list))
	for _, p := range list {
		out = append(out, toProgram(p))
	}
	return out
}

type screeningResp struct {
	ID                 int64      `json:"id"`
	ProgramID          int64      `json:"program_id"`
	SubmitterID        int64      `json:"submitter_id"`
	HandlerID          *int64     `json:"handler_id"`
	FilmTitle          string     `json:"film_title"`
	FilmCast           string     `json:"film_cast"`
	FilmGenre          string     `json:"film_genre"`
	FilmDuration       int        `json:"film_duration"`
	Venue              string     `json:"venue"`
	StartTime          *time.Time `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	State              string     `json:"state"`
	ReviewScore        *float64   `json:"review_score"`
	ReviewComments     string     `json:"review_comments,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	ApprovalNotes      string     `json:"approval_notes,omitempty"`
	IsFinallySubmitted bool       `json:"is_finally_submitted"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toScreening(s model.Screening) screeningResp {
	return screeningResp{
		ID:                 s.ID,
		ProgramID:          s.ProgramID,
		SubmitterID:        s.SubmitterID,
		HandlerID:          s.HandlerID,
		FilmTitle:          s.FilmTitle,
		FilmCast:           s.FilmCast,
		FilmGenre:          s.FilmGenre,
		FilmDuration:       s.FilmDuration,
		Venue:              s.Venue,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		State:              string(s.State),
		ReviewScore:        s.ReviewScore,
		ReviewComments:     s.ReviewComments,
		RejectionReason:    s.RejectionReason,
		ApprovalNotes:      s.ApprovalNotes,
		IsFinallySubmitted: s.IsFinallySubmitted,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func toScreenings(list []model.Screening) []screeningResp {
	out := make([]screeningResp, 0, len(list))
	for _, s := range list {
		out = append(out, toScreening(s))
	}
	return out
}

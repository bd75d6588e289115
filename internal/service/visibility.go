package service

import "github.com/iliyamo/cinema-festival/internal/model"

// CanViewProgram applies program visibility.  Anonymous and role-less
// callers see ANNOUNCED programs only; admins see everything; anyone with a
// role in the program sees it in every state.
func CanViewProgram(viewer *model.User, p model.Program, roles model.RoleSet) bool {
	if p.State == model.ProgramAnnounced {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.IsAdmin() || !roles.Empty()
}

// CanViewScreening applies screening visibility for one screening of p.
// A PROGRAMMER sees every screening.  STAFF sees the screenings they handle
// and SUBMITTER those they submitted; a user holding both sees the union.
// Everybody else sees SCHEDULED screenings of ANNOUNCED programs.
func CanViewScreening(viewer *model.User, p model.Program, s model.Screening, roles model.RoleSet) bool {
	if viewer == nil || roles.Empty() {
		return publicScreening(p, s)
	}
	if roles.Has(model.RoleProgrammer) {
		return true
	}
	if roles.Has(model.RoleStaff) && s.HandlerID != nil && *s.HandlerID == viewer.ID {
		return true
	}
	return roles.Has(model.RoleSubmitter) && s.SubmitterID == viewer.ID
}

func publicScreening(p model.Program, s model.Screening) bool {
	return p.State == model.ProgramAnnounced && s.State == model.ScreeningScheduled
}

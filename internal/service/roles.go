package service

import (
	"context"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/repository"
)

// RoleResolver answers which program roles a user holds.  Admins get no
// implicit role: every program-scoped check needs an explicit grant.
type RoleResolver struct {
	roles *repository.RoleRepo
}

// NewRoleResolver builds a resolver over st.  Pass a transactional Store to
// resolve inside a transaction.
func NewRoleResolver(st *repository.Store) *RoleResolver {
	return &RoleResolver{roles: st.Roles}
}

// RolesOf returns every role userID holds in programID.  Anonymous callers
// (userID 0) hold none.
func (r *RoleResolver) RolesOf(ctx context.Context, userID, programID int64) (model.RoleSet, error) {
	if userID == 0 {
		return 0, nil
	}
	return r.roles.RolesOf(ctx, userID, programID)
}

// RoleOf returns the caller's primary role in the program, PROGRAMMER
// first, then STAFF, then SUBMITTER.  model.RoleNone when the caller holds
// no role.
func (r *RoleResolver) RoleOf(ctx context.Context, userID, programID int64) (model.ProgramRoleType, error) {
	set, err := r.RolesOf(ctx, userID, programID)
	if err != nil {
		return model.RoleNone, err
	}
	return set.Primary(), nil
}

// Require fails with ErrForbidden unless userID holds role in programID.
func (r *RoleResolver) Require(ctx context.Context, userID, programID int64, role model.ProgramRoleType) error {
	set, err := r.RolesOf(ctx, userID, programID)
	if err != nil {
		return err
	}
	if !set.Has(role) {
		return errorf(ErrForbidden, "requires %s role in program %d", role, programID)
	}
	return nil
}

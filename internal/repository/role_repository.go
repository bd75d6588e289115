package repository

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-festival/internal/model"
)

// RoleRepo persists (user, program, role) grants.
type RoleRepo struct{ db DBTX }

// Grant inserts a role grant.  A repeated (user, program, role) triple
// returns ErrDuplicate.
func (r *RoleRepo) Grant(ctx context.Context, userID, programID int64, role model.ProgramRoleType, now time.Time) (model.ProgramRole, error) {
	now = dbTime(now)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO program_roles (user_id, program_id, role, assigned_at) VALUES (?,?,?,?)",
		userID, programID, string(role), now)
	if err != nil {
		if isDuplicate(err) {
			return model.ProgramRole{}, ErrDuplicate
		}
		return model.ProgramRole{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.ProgramRole{}, err
	}
	return model.ProgramRole{ID: id, UserID: userID, ProgramID: programID, Role: role, AssignedAt: now}, nil
}

// Has reports whether the user holds role in the program.
func (r *RoleRepo) Has(ctx context.Context, userID, programID int64, role model.ProgramRoleType) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM program_roles WHERE user_id=? AND program_id=? AND role=?",
		userID, programID, string(role)).Scan(&n)
	return n > 0, err
}

// RolesOf returns every role the user holds in the program.
func (r *RoleRepo) RolesOf(ctx context.Context, userID, programID int64) (model.RoleSet, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT role FROM program_roles WHERE user_id=? AND program_id=?", userID, programID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var set model.RoleSet
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return 0, err
		}
		set = set.With(model.ProgramRoleType(role))
	}
	return set, rows.Err()
}

// RolesByUser returns the user's roles keyed by program id.
func (r *RoleRepo) RolesByUser(ctx context.Context, userID int64) (map[int64]model.RoleSet, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT program_id, role FROM program_roles WHERE user_id=?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64]model.RoleSet{}
	for rows.Next() {
		var (
			programID int64
			role      string
		)
		if err := rows.Scan(&programID, &role); err != nil {
			return nil, err
		}
		out[programID] = out[programID].With(model.ProgramRoleType(role))
	}
	return out, rows.Err()
}

// ListForProgram returns the program's grants ordered by assignment.
func (r *RoleRepo) ListForProgram(ctx context.Context, programID int64) ([]model.ProgramRole, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, program_id, role, assigned_at FROM program_roles WHERE program_id=? ORDER BY id",
		programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ProgramRole
	for rows.Next() {
		var (
			pr   model.ProgramRole
			role string
		)
		if err := rows.Scan(&pr.ID, &pr.UserID, &pr.ProgramID, &role, &pr.AssignedAt); err != nil {
			return nil, err
		}
		pr.Role = model.ProgramRoleType(role)
		out = append(out, pr)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/cinema-festival/internal/model"
)

// UserRepo persists users and enforces the referential rules that apply
// when a user is deleted.
type UserRepo struct{ db DBTX }

const userColumns = "id,username,password_hash,full_name,email,role,is_active,failed_login_attempts,created_at,updated_at"

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	var role string
	err := r.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email, &role,
		&u.IsActive, &u.FailedLoginAttempts, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.UserRole(role)
	return u, err
}

// Create inserts user and returns its ID.  Username and email are unique.
func (r *UserRepo) Create(ctx context.Context, u model.User, now time.Time) (int64, error) {
	now = dbTime(now)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, full_name, email, role, is_active, failed_login_attempts, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		u.Username, u.PasswordHash, u.FullName, strings.ToLower(strings.TrimSpace(u.Email)),
		string(u.Role), u.IsActive, u.FailedLoginAttempts, now, now)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
	return u, notFound(err)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err)
}

// List returns users ordered by id.
func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateProfile rewrites the editable profile columns.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, username, fullName, email string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET username=?, full_name=?, email=?, updated_at=? WHERE id=?",
		username, fullName, strings.ToLower(strings.TrimSpace(email)), dbTime(now), id)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return expectOne(res)
}

// UpdatePassword stores a new password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, dbTime(now), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetActive toggles the active flag.
func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_active=?, updated_at=? WHERE id=?", active, dbTime(now), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetFailedAttempts stores the consecutive failed password check counter.
func (r *UserRepo) SetFailedAttempts(ctx context.Context, id int64, n int, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET failed_login_attempts=?, updated_at=? WHERE id=?", n, dbTime(now), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// CountSubmissions returns how many screenings the user submitted.
func (r *UserRepo) CountSubmissions(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM screenings WHERE submitter_id=?", id).Scan(&n)
	return n, err
}

// Delete removes a user.  A user referenced as a screening submitter cannot
// be deleted (ErrConflict).  Handler references are cleared; session tokens
// and program roles are removed with the user.  Callers should run this
// inside a transaction.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	n, err := r.CountSubmissions(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE screenings SET handler_id=NULL WHERE handler_id=?", id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM session_tokens WHERE user_id=?", id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM program_roles WHERE user_id=?", id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

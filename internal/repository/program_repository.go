package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/cinema-festival/internal/model"
)

// ProgramRepo persists festival programs.
type ProgramRepo struct{ db DBTX }

// ProgramFilter narrows a program search.  Empty fields are ignored.  Text
// filters are case-insensitive substrings; FilmTitle and Venue match when
// any screening of the program matches.
type ProgramFilter struct {
	Name        string
	Description string
	StartFrom   *time.Time // start_date >= StartFrom
	EndUntil    *time.Time // end_date <= EndUntil
	FilmTitle   string
	Venue       string
}

const programColumns = "p.id, p.name, p.description, p.start_date, p.end_date, p.state, p.created_at, p.updated_at"

func scanProgram(r rowScanner) (model.Program, error) {
	var p model.Program
	var state string
	err := r.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &state, &p.CreatedAt, &p.UpdatedAt)
	p.State = model.ProgramState(state)
	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	return p, err
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create inserts a program and returns its ID.  Names are globally unique.
func (r *ProgramRepo) Create(ctx context.Context, p model.Program, now time.Time) (int64, error) {
	now = dbTime(now)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO programs (name, description, start_date, end_date, state, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?)`,
		p.Name, p.Description, DateOnly(p.StartDate), DateOnly(p.EndDate), string(p.State), now, now)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetByID fetches a program by id.
func (r *ProgramRepo) GetByID(ctx context.Context, id int64) (model.Program, error) {
	p, err := scanProgram(r.db.QueryRowContext(ctx,
		"SELECT "+programColumns+" FROM programs p WHERE p.id=? LIMIT 1", id))
	return p, notFound(err)
}

// GetByName fetches a program by exact name.
func (r *ProgramRepo) GetByName(ctx context.Context, name string) (model.Program, error) {
	p, err := scanProgram(r.db.QueryRowContext(ctx,
		"SELECT "+programColumns+" FROM programs p WHERE p.name=? LIMIT 1", name))
	return p, notFound(err)
}

// Update rewrites name, description and dates.
func (r *ProgramRepo) Update(ctx context.Context, p model.Program, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE programs SET name=?, description=?, start_date=?, end_date=?, updated_at=? WHERE id=?",
		p.Name, p.Description, DateOnly(p.StartDate), DateOnly(p.EndDate), dbTime(now), p.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return expectOne(res)
}

// SetState stores a new lifecycle state.
func (r *ProgramRepo) SetState(ctx context.Context, id int64, state model.ProgramState, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE programs SET state=?, updated_at=? WHERE id=?", string(state), dbTime(now), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a program together with the screenings and role grants it
// owns.  Callers should run this inside a transaction.
func (r *ProgramRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM screenings WHERE program_id=?", id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM program_roles WHERE program_id=?", id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM programs WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListByState returns every program currently in state.
func (r *ProgramRepo) ListByState(ctx context.Context, state model.ProgramState) ([]model.Program, error) {
	return r.query(ctx,
		"SELECT "+programColumns+" FROM programs p WHERE p.state=? ORDER BY p.start_date, p.name", string(state))
}

// Search returns programs matching f ordered by (start_date, name).
func (r *ProgramRepo) Search(ctx context.Context, f ProgramFilter) ([]model.Program, error) {
	where := []string{}
	args := []any{}

	if s := strings.TrimSpace(f.Name); s != "" {
		where = append(where, "LOWER(p.name) LIKE ? ESCAPE '!'")
		args = append(args, likeArg(s))
	}
	if s := strings.TrimSpace(f.Description); s != "" {
		where = append(where, "LOWER(p.description) LIKE ? ESCAPE '!'")
		args = append(args, likeArg(s))
	}
	if f.StartFrom != nil {
		where = append(where, "p.start_date >= ?")
		args = append(args, DateOnly(*f.StartFrom))
	}
	if f.EndUntil != nil {
		where = append(where, "p.end_date <= ?")
		args = append(args, DateOnly(*f.EndUntil))
	}
	if s := strings.TrimSpace(f.FilmTitle); s != "" {
		where = append(where, "EXISTS (SELECT 1 FROM screenings s WHERE s.program_id = p.id AND LOWER(s.film_title) LIKE ? ESCAPE '!')")
		args = append(args, likeArg(s))
	}
	if s := strings.TrimSpace(f.Venue); s != "" {
		where = append(where, "EXISTS (SELECT 1 FROM screenings s WHERE s.program_id = p.id AND LOWER(s.venue) LIKE ? ESCAPE '!')")
		args = append(args, likeArg(s))
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	return r.query(ctx,
		"SELECT "+programColumns+" FROM programs p WHERE "+cond+" ORDER BY p.start_date, p.name, p.id", args...)
}

func (r *ProgramRepo) query(ctx context.Context, q string, args ...any) ([]model.Program, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

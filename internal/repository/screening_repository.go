package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/cinema-festival/internal/model"
)

// ScreeningRepo persists screenings.
type ScreeningRepo struct{ db DBTX }

// ScreeningFilter narrows a screening search inside one program.  Title,
// Cast and Genre use AND-of-words matching: every whitespace-separated word
// must occur (case-insensitive) in the field.
type ScreeningFilter struct {
	Title      string
	Cast       string
	Genre      string
	StartFrom  *time.Time // start_time >= StartFrom
	StartUntil *time.Time // start_time <= StartUntil
}

const screeningColumns = `id, program_id, submitter_id, handler_id, film_title, film_cast, film_genre,
	film_duration, venue, start_time, end_time, state, review_score, review_comments,
	rejection_reason, approval_notes, is_finally_submitted, created_at, updated_at`

func scanScreening(r rowScanner) (model.Screening, error) {
	var (
		s       model.Screening
		handler sql.NullInt64
		start   sql.NullTime
		end     sql.NullTime
		score   sql.NullFloat64
		state   string
	)
	err := r.Scan(&s.ID, &s.ProgramID, &s.SubmitterID, &handler, &s.FilmTitle, &s.FilmCast, &s.FilmGenre,
		&s.FilmDuration, &s.Venue, &start, &end, &state, &score, &s.ReviewComments,
		&s.RejectionReason, &s.ApprovalNotes, &s.IsFinallySubmitted, &s.CreatedAt, &s.UpdatedAt)
	s.HandlerID = int64Ptr(handler)
	s.StartTime = timePtr(start)
	s.EndTime = timePtr(end)
	s.ReviewScore = floatPtr(score)
	s.State = model.ScreeningState(state)
	return s, err
}

// Create inserts a screening and returns its ID.
func (r *ScreeningRepo) Create(ctx context.Context, s model.Screening, now time.Time) (int64, error) {
	now = dbTime(now)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO screenings (program_id, submitter_id, handler_id, film_title, film_cast, film_genre,
			film_duration, venue, start_time, end_time, state, review_score, review_comments,
			rejection_reason, approval_notes, is_finally_submitted, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ProgramID, s.SubmitterID, nullInt64(s.HandlerID), s.FilmTitle, s.FilmCast, s.FilmGenre,
		s.FilmDuration, s.Venue, nullTime(s.StartTime), nullTime(s.EndTime), string(s.State),
		nullFloat(s.ReviewScore), s.ReviewComments, s.RejectionReason, s.ApprovalNotes,
		s.IsFinallySubmitted, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetByID fetches a screening by id.
func (r *ScreeningRepo) GetByID(ctx context.Context, id int64) (model.Screening, error) {
	s, err := scanScreening(r.db.QueryRowContext(ctx,
		"SELECT "+screeningColumns+" FROM screenings WHERE id=? LIMIT 1", id))
	return s, notFound(err)
}

// Update writes every mutable column of s.  Program and submitter never
// change.
func (r *ScreeningRepo) Update(ctx context.Context, s model.Screening, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE screenings SET handler_id=?, film_title=?, film_cast=?, film_genre=?, film_duration=?,
			venue=?, start_time=?, end_time=?, state=?, review_score=?, review_comments=?,
			rejection_reason=?, approval_notes=?, is_finally_submitted=?, updated_at=?
		 WHERE id=?`,
		nullInt64(s.HandlerID), s.FilmTitle, s.FilmCast, s.FilmGenre, s.FilmDuration,
		s.Venue, nullTime(s.StartTime), nullTime(s.EndTime), string(s.State), nullFloat(s.ReviewScore),
		s.ReviewComments, s.RejectionReason, s.ApprovalNotes, s.IsFinallySubmitted, dbTime(now), s.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a screening.
func (r *ScreeningRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM screenings WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListNonFinalApproved returns ids of APPROVED screenings in the program
// that were never finally submitted.
func (r *ScreeningRepo) ListNonFinalApproved(ctx context.Context, programID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM screenings WHERE program_id=? AND state=? AND is_finally_submitted=? ORDER BY id",
		programID, string(model.ScreeningApproved), false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Reject moves one screening to REJECTED with a reason.
func (r *ScreeningRepo) Reject(ctx context.Context, id int64, reason string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE screenings SET state=?, rejection_reason=?, updated_at=? WHERE id=?",
		string(model.ScreeningRejected), reason, dbTime(now), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Search returns the program's screenings matching f ordered by
// (genre, title).
func (r *ScreeningRepo) Search(ctx context.Context, programID int64, f ScreeningFilter) ([]model.Screening, error) {
	where := []string{"program_id=?"}
	args := []any{programID}

	addWords := func(col, q string) {
		for _, w := range strings.Fields(q) {
			where = append(where, "LOWER("+col+") LIKE ? ESCAPE '!'")
			args = append(args, likeArg(w))
		}
	}
	addWords("film_title", f.Title)
	addWords("film_cast", f.Cast)
	addWords("film_genre", f.Genre)

	if f.StartFrom != nil {
		where = append(where, "start_time >= ?")
		args = append(args, dbTime(*f.StartFrom))
	}
	if f.StartUntil != nil {
		where = append(where, "start_time <= ?")
		args = append(args, dbTime(*f.StartUntil))
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+screeningColumns+" FROM screenings WHERE "+strings.Join(where, " AND ")+
			" ORDER BY film_genre, film_title, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Screening
	for rows.Next() {
		s, err := scanScreening(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every repository can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles the repositories over one connection or transaction.
type Store struct {
	db *sql.DB
	tx *sql.Tx

	Users      *UserRepo
	Tokens     *TokenRepo
	Programs   *ProgramRepo
	Roles      *RoleRepo
	Screenings *ScreeningRepo
}

// NewStore builds a Store over the connection pool.
func NewStore(db *sql.DB) *Store { return newStore(db, db, nil) }

func newStore(db *sql.DB, q DBTX, tx *sql.Tx) *Store {
	return &Store{
		db:         db,
		tx:         tx,
		Users:      &UserRepo{db: q},
		Tokens:     &TokenRepo{db: q},
		Programs:   &ProgramRepo{db: q},
		Roles:      &RoleRepo{db: q},
		Screenings: &ScreeningRepo{db: q},
	}
}

// DB exposes the underlying pool (health checks, shutdown).
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside one transaction.  fn receives a Store whose
// repositories are bound to the transaction; it is committed when fn
// returns nil and rolled back otherwise.  Calling WithTx on a Store that is
// already transactional reuses the open transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(newStore(s.db, tx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Timestamps are stored in UTC with second precision so both dialects
// round-trip them identically.
func dbTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// expectOne turns an UPDATE/DELETE that matched nothing into ErrNotFound.
// MySQL connections are opened with clientFoundRows so matched rows count
// even when no column changed.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios without inspecting
// driver-specific errors.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// constraint (username, email, program name, role grant).
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a delete cannot be performed because other
// rows still reference the target, such as deleting a user who submitted
// screenings.
var ErrConflict = errors.New("conflict")

// isDuplicate recognises unique-key violations from both MySQL (1062) and
// SQLite.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// escapeLike escapes LIKE wildcards using '!' which both dialects accept
// in an ESCAPE clause.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// likeArg builds a case-insensitive substring pattern for
// "LOWER(col) LIKE ? ESCAPE '!'".
func likeArg(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}

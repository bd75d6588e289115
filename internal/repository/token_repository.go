package repository

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-festival/internal/model"
)

// TokenRepo persists session tokens by their SHA-256 hash.
type TokenRepo struct{ db DBTX }

// Store inserts a valid session token row.
func (r *TokenRepo) Store(ctx context.Context, userID int64, tokenHash string, exp, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO session_tokens (user_id, token_hash, expires_at, is_valid, created_at) VALUES (?,?,?,?,?)",
		userID, tokenHash, dbTime(exp), true, dbTime(now))
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByHash returns the token row for a hash whether or not it is still
// valid; callers decide what an invalid or expired row means.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.SessionToken, error) {
	var t model.SessionToken
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, is_valid, created_at FROM session_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.IsValid, &t.CreatedAt)
	return t, notFound(err)
}

// Invalidate marks one token as no longer valid.
func (r *TokenRepo) Invalidate(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE session_tokens SET is_valid=? WHERE token_hash=? AND is_valid=?",
		false, tokenHash, true)
	return err
}

// InvalidateAllForUser invalidates every valid token of a user and returns
// how many were affected.
func (r *TokenRepo) InvalidateAllForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE session_tokens SET is_valid=? WHERE user_id=? AND is_valid=?",
		false, userID, true)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountValidForUser returns how many valid, unexpired tokens a user holds.
func (r *TokenRepo) CountValidForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM session_tokens WHERE user_id=? AND is_valid=? AND expires_at > ?",
		userID, true, dbTime(now)).Scan(&n)
	return n, err
}

// PurgeExpired deletes tokens that are invalid or past their expiry.
func (r *TokenRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM session_tokens WHERE is_valid=? OR expires_at <= ?", false, dbTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-festival/internal/model"
	"github.com/iliyamo/cinema-festival/internal/repository"
	"github.com/iliyamo/cinema-festival/internal/utils"
)

// AuthConfig carries the credential settings from config.Config.
type AuthConfig struct {
	Secret     string // HS256 signing key
	TTLMin     int    // session lifetime in minutes
	BcryptCost int
}

// AuthService owns user registration, login and the session lifecycle.
// At most one session per user is valid at any time.
type AuthService struct {
	store  *repository.Store
	cfg    AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService wires an AuthService.
func NewAuthService(store *repository.Store, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Username string `validate:"required,min=5,max=50,username"`
	Password string `validate:"required,password"`
	FullName string `validate:"required"`
	Email    string `validate:"required,email"`
}

// Session is an issued bearer credential.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

// Register creates an inactive USER account.  An admin must activate it
// before the first login.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	if err := validate(in); err != nil {
		return model.User{}, err
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}

	var u model.User
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		if err := ensureUnique(ctx, tx, 0, in.Username, in.Email); err != nil {
			return err
		}
		u = model.User{
			Username:     in.Username,
			PasswordHash: hash,
			FullName:     in.FullName,
			Email:        in.Email,
			Role:         model.UserRoleUser,
			IsActive:     false,
		}
		id, err := tx.Users.Create(ctx, u, s.now())
		if err != nil {
			return translate(err, "user")
		}
		u, err = tx.Users.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// ensureUnique fails with ErrConflict when username or email belongs to a
// user other than selfID.
func ensureUnique(ctx context.Context, st *repository.Store, selfID int64, username, email string) error {
	if username != "" {
		other, err := st.Users.GetByUsername(ctx, username)
		switch {
		case err == nil && other.ID != selfID:
			return errorf(ErrConflict, "username already exists")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}
	if email != "" {
		other, err := st.Users.GetByEmail(ctx, email)
		switch {
		case err == nil && other.ID != selfID:
			return errorf(ErrConflict, "email already exists")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}
	return nil
}

// Login verifies the password and issues a new session, invalidating every
// earlier session of the user.  Wrong passwords count towards the lockout;
// the counter is persisted even though the call fails.
func (s *AuthService) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, errorf(ErrValidation, "username and password are required")
	}

	var (
		sess    Session
		outcome error
	)
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		now := s.now()
		u, err := tx.Users.GetByUsername(ctx, username)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = errorf(ErrAuthFailed, "invalid credentials")
			return nil
		}
		if err != nil {
			return err
		}

		if !utils.VerifyPassword(u.PasswordHash, password) {
			locked, err := registerFailedPassword(ctx, tx, u, now, s.logger)
			if err != nil {
				return err
			}
			outcome = failedPasswordError(locked)
			return nil
		}
		if !u.IsActive {
			outcome = errorf(ErrForbidden, "account is not active")
			return nil
		}

		if u.FailedLoginAttempts != 0 {
			if err := tx.Users.SetFailedAttempts(ctx, u.ID, 0, now); err != nil {
				return err
			}
			u.FailedLoginAttempts = 0
		}
		if _, err := tx.Tokens.InvalidateAllForUser(ctx, u.ID); err != nil {
			return err
		}
		tok, err := utils.NewSessionToken(s.cfg.Secret, u.ID, u.Username, s.cfg.TTLMin, now)
		if err != nil {
			return err
		}
		if err := tx.Tokens.Store(ctx, u.ID, tok.Hash, tok.Exp, now); err != nil {
			return err
		}
		sess = Session{Token: tok.Token, ExpiresAt: tok.Exp, User: u}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	if outcome != nil {
		return Session{}, outcome
	}
	s.logger.Info("user logged in", zap.Int64("user_id", sess.User.ID))
	return sess, nil
}

// registerFailedPassword bumps the failed-attempt counter of u.  Reaching
// model.MaxFailedLogins deactivates the account and revokes its sessions;
// locked reports that the counter is at or past the limit.
func registerFailedPassword(ctx context.Context, tx *repository.Store, u model.User, now time.Time, logger *zap.Logger) (locked bool, err error) {
	n := u.FailedLoginAttempts + 1
	if err := tx.Users.SetFailedAttempts(ctx, u.ID, n, now); err != nil {
		return false, err
	}
	if n < model.MaxFailedLogins {
		return false, nil
	}
	if u.IsActive {
		if err := deactivate(ctx, tx, u.ID, now); err != nil {
			return false, err
		}
		logger.Warn("account locked after failed password attempts",
			zap.Int64("user_id", u.ID), zap.Int("attempts", n))
	}
	return true, nil
}

// failedPasswordError is what the caller sees after a wrong password.
func failedPasswordError(locked bool) error {
	if locked {
		return errorf(ErrForbidden, "account deactivated due to multiple failed password attempts")
	}
	return errorf(ErrAuthFailed, "invalid credentials")
}

// deactivate clears the active flag and revokes every session of the user.
func deactivate(ctx context.Context, tx *repository.Store, userID int64, now time.Time) error {
	if err := tx.Users.SetActive(ctx, userID, false, now); err != nil {
		return err
	}
	_, err := tx.Tokens.InvalidateAllForUser(ctx, userID)
	return err
}

// Logout invalidates the presented session.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	return s.store.Tokens.Invalidate(ctx, utils.HashToken(rawToken))
}

// ForceLogout revokes every session of userID.  Admin only; admin accounts
// cannot be force-logged-out.
func (s *AuthService) ForceLogout(ctx context.Context, actor *model.User, userID int64) (int64, error) {
	if actor == nil || !actor.IsAdmin() {
		return 0, errorf(ErrForbidden, "admin privileges required")
	}
	target, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return 0, translate(err, "user")
	}
	if target.IsAdmin() {
		return 0, errorf(ErrForbidden, "cannot force logout admin users")
	}
	n, err := s.store.Tokens.InvalidateAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("sessions revoked by admin",
		zap.Int64("user_id", userID), zap.Int64("admin_id", actor.ID), zap.Int64("sessions", n))
	return n, nil
}

// Authenticate resolves a bearer token to its user.  The stored session row
// is authoritative: it must exist, be valid and unexpired, and belong to the
// user the token claims.  A mismatch deactivates both accounts and returns
// ErrIntegrityViolation.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (model.User, error) {
	claims, err := utils.ParseSessionToken(s.cfg.Secret, rawToken)
	if err != nil {
		return model.User{}, errorf(ErrAuthFailed, "invalid token")
	}
	hash := utils.HashToken(rawToken)

	var (
		user    model.User
		outcome error
	)
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		now := s.now()
		row, err := tx.Tokens.GetByHash(ctx, hash)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = errorf(ErrAuthFailed, "unknown session")
			return nil
		}
		if err != nil {
			return err
		}
		if !row.IsValid {
			outcome = errorf(ErrAuthFailed, "session revoked")
			return nil
		}
		if row.UserID != claims.UserID {
			for _, id := range []int64{claims.UserID, row.UserID} {
				if err := deactivate(ctx, tx, id, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
					return err
				}
			}
			s.logger.Error("session bound to a different user, both accounts deactivated",
				zap.Int64("claimed_user_id", claims.UserID), zap.Int64("owner_user_id", row.UserID))
			outcome = errorf(ErrIntegrityViolation, "token does not belong to its claimed user")
			return nil
		}
		if !now.Before(row.ExpiresAt) {
			if err := tx.Tokens.Invalidate(ctx, hash); err != nil {
				return err
			}
			outcome = errorf(ErrAuthFailed, "session expired")
			return nil
		}
		u, err := tx.Users.GetByID(ctx, row.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = errorf(ErrAuthFailed, "user no longer exists")
			return nil
		}
		if err != nil {
			return err
		}
		if !u.IsActive {
			outcome = errorf(ErrAuthFailed, "account is not active")
			return nil
		}
		user = u
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	if outcome != nil {
		return model.User{}, outcome
	}
	return user, nil
}

// ValidateToken reports whether rawToken currently authenticates.
func (s *AuthService) ValidateToken(ctx context.Context, rawToken string) bool {
	_, err := s.Authenticate(ctx, rawToken)
	return err == nil
}

// SeedAdmin creates an active ADMIN account when password is set and no
// user with that username exists yet.  It reports whether a user was
// created.
func (s *AuthService) SeedAdmin(ctx context.Context, username, password, email, fullName string) (bool, error) {
	if password == "" {
		return false, nil
	}
	_, err := s.store.Users.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return false, err
	}
	id, err := s.store.Users.Create(ctx, model.User{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Email:        email,
		Role:         model.UserRoleAdmin,
		IsActive:     true,
	}, s.now())
	if err != nil {
		return false, translate(err, "admin user")
	}
	s.logger.Info("admin account seeded", zap.Int64("user_id", id), zap.String("username", username))
	return true, nil
}

// PurgeSessions deletes sessions that are expired or invalid.
func (s *AuthService) PurgeSessions(ctx context.Context) (int64, error) {
	return s.store.Tokens.PurgeExpired(ctx, s.now())
}

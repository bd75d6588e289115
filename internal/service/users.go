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

// Paging limits for user listings.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// UserService manages accounts after registration.
type UserService struct {
	store      *repository.Store
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewUserService wires a UserService.
func NewUserService(store *repository.Store, bcryptCost int, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, bcryptCost: bcryptCost, logger: logger, now: time.Now}
}

// UpdateUserInput carries optional profile changes; nil fields are kept.
type UpdateUserInput struct {
	Username *string
	FullName *string
	Email    *string
}

func selfOrAdmin(actor *model.User, id int64) error {
	if actor == nil {
		return errorf(ErrAuthFailed, "authentication required")
	}
	if actor.ID != id && !actor.IsAdmin() {
		return errorf(ErrForbidden, "not authorized to access user %d", id)
	}
	return nil
}

func requireAdmin(actor *model.User) error {
	if actor == nil || !actor.IsAdmin() {
		return errorf(ErrForbidden, "admin privileges required")
	}
	return nil
}

// Get returns a user.  Users may read themselves; admins may read anyone.
func (s *UserService) Get(ctx context.Context, actor *model.User, id int64) (model.User, error) {
	if err := selfOrAdmin(actor, id); err != nil {
		return model.User{}, err
	}
	u, err := s.store.Users.GetByID(ctx, id)
	return u, translate(err, "user")
}

// List pages through all users.  Admin only.  limit <= 0 selects the
// default page size.
func (s *UserService) List(ctx context.Context, actor *model.User, skip, limit int) ([]model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if skip < 0 {
		return nil, errorf(ErrValidation, "skip must not be negative")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		return nil, errorf(ErrValidation, "limit must be at most %d", MaxListLimit)
	}
	return s.store.Users.List(ctx, skip, limit)
}

// UpdateInfo changes username, full name or email.  Changing the username
// revokes every session of the user since tokens carry it.
func (s *UserService) UpdateInfo(ctx context.Context, actor *model.User, id int64, in UpdateUserInput) (model.User, error) {
	if err := selfOrAdmin(actor, id); err != nil {
		return model.User{}, err
	}

	var out model.User
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		u, err := tx.Users.GetByID(ctx, id)
		if err != nil {
			return translate(err, "user")
		}
		next := u
		if in.Username != nil {
			next.Username = strings.TrimSpace(*in.Username)
		}
		if in.FullName != nil {
			next.FullName = strings.TrimSpace(*in.FullName)
		}
		if in.Email != nil {
			next.Email = strings.TrimSpace(*in.Email)
		}
		if err := validate(next); err != nil {
			return err
		}
		if err := ensureUnique(ctx, tx, id, next.Username, next.Email); err != nil {
			return err
		}

		now := s.now()
		if err := tx.Users.UpdateProfile(ctx, id, next.Username, next.FullName, next.Email, now); err != nil {
			return translate(err, "user")
		}
		if next.Username != u.Username {
			if _, err := tx.Tokens.InvalidateAllForUser(ctx, id); err != nil {
				return err
			}
		}
		out, err = tx.Users.GetByID(ctx, id)
		return err
	})
	return out, err
}

// ChangePassword replaces the password of the caller.  A wrong old
// password counts towards the lockout exactly like a failed login.  Success
// revokes every session.
func (s *UserService) ChangePassword(ctx context.Context, actor *model.User, id int64, oldPassword, newPassword, confirm string) error {
	if actor == nil {
		return errorf(ErrAuthFailed, "authentication required")
	}
	if actor.ID != id {
		return errorf(ErrForbidden, "not authorized to change this password")
	}
	if newPassword != confirm {
		return errorf(ErrValidation, "new passwords do not match")
	}
	if err := utils.ValidateVar("new_password", newPassword, "required,password"); err != nil {
		return errorf(ErrValidation, "%s", err.Error())
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	var outcome error
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		now := s.now()
		u, err := tx.Users.GetByID(ctx, id)
		if err != nil {
			return translate(err, "user")
		}
		if !utils.VerifyPassword(u.PasswordHash, oldPassword) {
			locked, err := registerFailedPassword(ctx, tx, u, now, s.logger)
			if err != nil {
				return err
			}
			outcome = failedPasswordError(locked)
			return nil
		}
		if err := tx.Users.UpdatePassword(ctx, id, hash, now); err != nil {
			return err
		}
		if err := tx.Users.SetFailedAttempts(ctx, id, 0, now); err != nil {
			return err
		}
		_, err = tx.Tokens.InvalidateAllForUser(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if outcome != nil {
		return outcome
	}
	s.logger.Info("password changed", zap.Int64("user_id", id))
	return nil
}

// SetActive activates or deactivates an account.  Admin only.  Activation
// resets the failed-attempt counter; deactivation revokes every session in
// the same transaction.
func (s *UserService) SetActive(ctx context.Context, actor *model.User, id int64, active bool) (model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return model.User{}, err
	}
	var out model.User
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		now := s.now()
		if _, err := tx.Users.GetByID(ctx, id); err != nil {
			return translate(err, "user")
		}
		if active {
			if err := tx.Users.SetActive(ctx, id, true, now); err != nil {
				return err
			}
			if err := tx.Users.SetFailedAttempts(ctx, id, 0, now); err != nil {
				return err
			}
		} else if err := deactivate(ctx, tx, id, now); err != nil {
			return err
		}
		var err error
		out, err = tx.Users.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("account status changed",
		zap.Int64("user_id", id), zap.Bool("active", active), zap.Int64("admin_id", actor.ID))
	return out, nil
}

// Delete removes an account.  Users may delete themselves, admins anyone
// except other admins.  A user who submitted screenings cannot be deleted.
func (s *UserService) Delete(ctx context.Context, actor *model.User, id int64) error {
	if actor == nil {
		return errorf(ErrAuthFailed, "authentication required")
	}
	err := s.store.WithTx(ctx, func(tx *repository.Store) error {
		u, err := tx.Users.GetByID(ctx, id)
		if err != nil {
			return translate(err, "user")
		}
		if u.IsAdmin() {
			return errorf(ErrForbidden, "cannot delete admin accounts")
		}
		if err := selfOrAdmin(actor, id); err != nil {
			return err
		}
		if err := tx.Users.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return errorf(ErrConflict, "user has submitted screenings")
			}
			return translate(err, "user")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.Int64("user_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

package model

import "time"

// UserRole is the functional tier of an account.  It is independent of any
// program-scoped role: an ADMIN holds no implicit role inside a program.
type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// MaxFailedLogins is the number of consecutive failed password checks that
// deactivates an account.
const MaxFailedLogins = 3

// User represents an application user record as stored in the `users`
// table.  The json tags are omitted because handlers define their own
// response shapes; the validate tags hold the profile rules.
//
// Fields:
//  ID                  – primary key identifier of the user.
//  Username            – unique login name.
//  PasswordHash        – bcrypt hashed password.
//  FullName            – display name.
//  Email               – unique email address.
//  Role                – USER or ADMIN.
//  IsActive            – inactive accounts cannot log in.
//  FailedLoginAttempts – consecutive failed password checks.
type User struct {
	ID                  int64                                                 // users.id
	Username            string    `validate:"required,min=5,max=50,username"` // users.username
	PasswordHash        string                                                // users.password_hash
	FullName            string    `validate:"required"`                       // users.full_name
	Email               string    `validate:"required,email"`                 // users.email
	Role                UserRole                                              // users.role
	IsActive            bool                                                  // users.is_active
	FailedLoginAttempts int                                                   // users.failed_login_attempts
	CreatedAt           time.Time                                             // users.created_at
	UpdatedAt           time.Time                                             // users.updated_at
}

// IsAdmin reports whether the user holds the ADMIN tier.
func (u User) IsAdmin() bool { return u.Role == UserRoleAdmin }

// SessionToken models an entry in the `session_tokens` table.  Only the
// SHA-256 hash of the bearer credential is stored.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the credential.
//  TokenHash – SHA-256 hex digest of the credential.
//  ExpiresAt – expiration timestamp.
//  IsValid   – false once the credential was logged out or superseded.
//  CreatedAt – timestamp of creation.
type SessionToken struct {
	ID        int64     // session_tokens.id
	UserID    int64     // session_tokens.user_id
	TokenHash string    // session_tokens.token_hash
	ExpiresAt time.Time // session_tokens.expires_at
	IsValid   bool      // session_tokens.is_valid
	CreatedAt time.Time // session_tokens.created_at
}

package utils // package utils provides helper functions for credential creation and hashing

import (
	"crypto/sha256" // SHA-256 hashing for stored session tokens
	"encoding/hex"  // hex encoding of the digest
	"errors"
	"strconv"
	"time" // expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // unique token id (jti)
)

// ErrInvalidToken is returned when a bearer credential cannot be parsed or
// its signature does not verify.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are the claims carried by a session credential.  UserID is
// the identity the token claims to belong to; the stored token row is the
// authority on who actually owns it.
type SessionClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionToken represents a signed session credential along with its
// expiry.  Only Hash is persisted.
type SessionToken struct {
	Token string    // the serialized JWT string returned to the client
	Hash  string    // SHA-256 hex digest stored in session_tokens
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for a user.  The jti claim
// is a random UUID so two tokens issued in the same second differ.
func NewSessionToken(secret string, userID int64, username string, ttlMin int, now time.Time) (SessionToken, error) {
	now = now.UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := SessionClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Hash: HashToken(signed), Exp: exp}, nil
}

// ParseSessionToken verifies the signature of raw and returns its claims.
// Expiry is not checked here: the stored token row decides whether a
// session is still alive so that expired rows can be invalidated.
func ParseSessionToken(secret, raw string) (SessionClaims, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid || claims.UserID == 0 {
		return SessionClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the SHA-256 hash of a raw credential as a hex string.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

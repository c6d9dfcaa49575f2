package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "ereader/pkg/domain-errors"
)

// DefaultRole is assigned by the backend to accounts without an explicit role.
const DefaultRole = "User"

// User is the authenticated account as returned by the backend.
type User struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	Role           string  `json:"role"`
	CreatedAt      *string `json:"createdAt,omitempty"`
}

// IsZero reports whether u carries no identity.
func (u User) IsZero() bool {
	return u.ID == 0 && strings.TrimSpace(u.Email) == ""
}

// RoleOrDefault returns Role, falling back to DefaultRole.
func (u User) RoleOrDefault() string {
	if u.Role == "" {
		return DefaultRole
	}
	return u.Role
}

// Session is the locally cached authentication state. It is either fully
// present (token and user) or absent; stores never hold half of it.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Validate rejects partial sessions.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "session token is required")
	}
	if s.User.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "session user is required")
	}
	return nil
}

// ExpiresAt decodes the exp claim when the token is a JWT. The signature is
// not verified; the value is only used for display and to skip a network
// round trip for a token that has certainly expired.
func (s Session) ExpiresAt() (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token carries an exp claim before now.
func (s Session) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}

// Clone returns a deep copy so observers cannot mutate stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User.ProfilePicture != nil {
		p := *s.User.ProfilePicture
		c.User.ProfilePicture = &p
	}
	if s.User.CreatedAt != nil {
		t := *s.User.CreatedAt
		c.User.CreatedAt = &t
	}
	return &c
}

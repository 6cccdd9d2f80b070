package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and logging.
// Valid values are defined as constants below.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// rank orders roles by privilege. Unknown roles rank below user.
func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool { return r.rank() >= other.rank() }

// User is the authenticated principal attached to a session.
// It is replaced wholesale on each successful login or profile refresh,
// never mutated field-by-field by callers.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	LastLoginAt time.Time `json:"last_login_at,omitzero"`
	MFAEnabled  bool      `json:"mfa_enabled"`
}

// HasPermission reports whether the permission is in the user's grant set.
// Role shortcuts are applied by the service layer, not here.
func (u User) HasPermission(p string) bool {
	for _, perm := range u.Permissions {
		if perm == p {
			return true
		}
	}
	return false
}

// Session is the record we keep for an authenticated user. Tokens come from
// the identity provider; ExpiresAt is always derived locally from the
// configured session timeout and never trusted from storage without
// revalidation.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// IsExpired reports whether the session has passed its expiry at the given time.
func (s Session) IsExpired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Credentials is the transient login input. It is never persisted.
type Credentials struct {
	Email      string `validate:"required,email"`
	Password   string `validate:"required"`
	MFACode    string
	RememberMe bool
}

// TokenBundle is what the identity provider returns from a sign-in or refresh.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
}

// Profile is the authoritative role/permission record for a user.
// Tokens alone never carry authorization data.
type Profile struct {
	Role        Role
	TenantID    string
	Permissions []string
	MFAEnabled  bool
}

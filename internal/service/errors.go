package service

import (
	"errors"
	"fmt"
	"time"
)

// Login failure taxonomy. Credential, policy, and lockout errors surface to
// the caller for user-facing display. Storage faults never appear here; they
// are absorbed by the session store. Refresh failures are absorbed into an
// automatic logout rather than surfaced granularly.
var (
	// ErrPolicyViolation is returned when the password fails the configured policy.
	ErrPolicyViolation = errors.New("password does not meet policy")

	// ErrInvalidCredentials is returned when the identity provider rejects the
	// credentials or the credential shape is invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrMFARequired is returned when MFA is enforced for the account but no
	// code was supplied.
	ErrMFARequired = errors.New("mfa code required")

	// ErrInvalidMFA is returned when a supplied MFA code fails verification.
	ErrInvalidMFA = errors.New("invalid mfa code")

	// ErrProfileFetchFailed is returned when authentication succeeded but the
	// profile store could not be read. It does not count toward lockout; the
	// credential was valid and this is an infrastructure fault.
	ErrProfileFetchFailed = errors.New("profile fetch failed")
)

// LockedOutError is returned when the identifier is under an active lockout
// window. Until carries the instant the lockout ends.
type LockedOutError struct {
	Until time.Time
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

// IsLockedOut reports whether err is a lockout rejection.
func IsLockedOut(err error) bool {
	var le *LockedOutError
	return errors.As(err, &le)
}

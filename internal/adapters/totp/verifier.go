package totp

// Package totp verifies time-based one-time passwords as the second
// authentication factor. Secret provisioning and QR enrollment are handled
// elsewhere; this adapter only answers whether a code is valid right now.

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp/totp"

	"github.com/helmgate/sessiond/internal/ports"
)

// SecretLookup resolves a user's base32 TOTP secret. Implementations may
// read from a database or a secrets service.
type SecretLookup func(ctx context.Context, userID string) (string, error)

// Verifier implements ports.MFAVerifier over TOTP codes.
type Verifier struct {
	lookup SecretLookup
}

var _ ports.MFAVerifier = (*Verifier)(nil)

// NewVerifier creates a TOTP verifier with the given secret lookup.
func NewVerifier(lookup SecretLookup) (*Verifier, error) {
	if lookup == nil {
		return nil, errors.New("totp: secret lookup is required")
	}
	return &Verifier{lookup: lookup}, nil
}

// Verify reports whether the code matches the user's current TOTP window.
// A missing or unreadable secret is an error, not a failed verification.
func (v *Verifier) Verify(ctx context.Context, userID, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	secret, err := v.lookup(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("totp: lookup secret: %w", err)
	}
	if secret == "" {
		return false, errors.New("totp: user has no enrolled secret")
	}
	return totp.Validate(code, secret), nil
}

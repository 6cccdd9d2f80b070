package ports

// Package ports defines interfaces (hexagonal ports) for the session
// lifecycle's external collaborators. Implementations live in
// internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
)

// IdentityProvider authenticates credentials and manages token lifecycles
// against an external IdP. Implementations return typed errors, never panic.
type IdentityProvider interface {
	// SignIn exchanges email/password for a token bundle.
	SignIn(ctx context.Context, email, password string) (domainauth.TokenBundle, error)

	// Refresh exchanges a refresh token for a fresh token bundle.
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenBundle, error)

	// SignOut invalidates the provider-side session. Best effort.
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileStore reads the authoritative role/permission record for a user.
type ProfileStore interface {
	// FetchProfile returns the profile for the given user id.
	// Returns ErrProfileNotFound when no profile exists.
	FetchProfile(ctx context.Context, userID string) (domainauth.Profile, error)
}

// MFAVerifier checks a second-factor code for a user.
type MFAVerifier interface {
	Verify(ctx context.Context, userID, code string) (bool, error)
}

// StorageBackend is a key-value string store for session persistence.
// All operations are fallible and callers must wrap them defensively;
// a backend may be read-only, absent, or failing at access time.
type StorageBackend interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// ErrKeyNotFound is returned by StorageBackend.Get for missing keys.
type keyNotFoundError struct{}

func (keyNotFoundError) Error() string { return "storage key not found" }

var ErrKeyNotFound error = keyNotFoundError{}

// ErrProfileNotFound is returned by ProfileStore.FetchProfile when the user
// has no profile record.
type profileNotFoundError struct{}

func (profileNotFoundError) Error() string { return "profile not found" }

var ErrProfileNotFound error = profileNotFoundError{}

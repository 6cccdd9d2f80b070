package auth

// Package auth contains simple hand-written test doubles for the auth
// ports. These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.ProfileStore     = (*MockProfileStore)(nil)
	_ ports.MFAVerifier      = (*MockMFAVerifier)(nil)
	_ ports.StorageBackend   = (*FailingStorageBackend)(nil)
)

// MockIdentityProvider simulates an IdP for tests. Hooks override behavior;
// without hooks it accepts the configured credentials and mints
// deterministic token bundles.
type MockIdentityProvider struct {
	SignInFunc  func(ctx context.Context, email, password string) (domainauth.TokenBundle, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (domainauth.TokenBundle, error)
	SignOutFunc func(ctx context.Context, accessToken string) error

	// Accepted credentials for the default SignIn behavior.
	Email    string
	Password string
	UserID   string
	TokenTTL time.Duration

	mu           sync.Mutex
	signInCalls  int
	refreshCalls int
	signOutCalls int
}

// NewMockIdentityProvider creates a provider accepting one known credential pair.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		Email:    "mock.user@example.com",
		Password: "Sup3r-secret",
		UserID:   "mock-user-1",
		TokenTTL: time.Hour,
	}
}

func (m *MockIdentityProvider) SignIn(ctx context.Context, email, password string) (domainauth.TokenBundle, error) {
	m.mu.Lock()
	m.signInCalls++
	n := m.signInCalls
	m.mu.Unlock()

	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	if email != m.Email || password != m.Password {
		return domainauth.TokenBundle{}, fmt.Errorf("mock idp: unknown credentials for %s", email)
	}
	return m.bundle(n), nil
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenBundle, error) {
	m.mu.Lock()
	m.refreshCalls++
	n := m.refreshCalls
	m.mu.Unlock()

	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	if refreshToken == "" {
		return domainauth.TokenBundle{}, fmt.Errorf("mock idp: empty refresh token")
	}
	return m.bundle(100 + n), nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()

	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, accessToken)
	}
	return nil
}

// SignInCalls returns how many times SignIn was invoked.
func (m *MockIdentityProvider) SignInCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signInCalls
}

// RefreshCalls returns how many times Refresh was invoked.
func (m *MockIdentityProvider) RefreshCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// SignOutCalls returns how many times SignOut was invoked.
func (m *MockIdentityProvider) SignOutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}

func (m *MockIdentityProvider) bundle(n int) domainauth.TokenBundle {
	return domainauth.TokenBundle{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
		ExpiresAt:    time.Now().Add(m.TokenTTL),
		UserID:       m.UserID,
	}
}

// MockProfileStore serves profiles from an in-memory map.
type MockProfileStore struct {
	FetchFunc func(ctx context.Context, userID string) (domainauth.Profile, error)

	mu       sync.Mutex
	profiles map[string]domainauth.Profile
}

// NewMockProfileStore creates a store preloaded with the given profiles.
func NewMockProfileStore(profiles map[string]domainauth.Profile) *MockProfileStore {
	if profiles == nil {
		profiles = make(map[string]domainauth.Profile)
	}
	return &MockProfileStore{profiles: profiles}
}

func (m *MockProfileStore) FetchProfile(ctx context.Context, userID string) (domainauth.Profile, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domainauth.Profile{}, ports.ErrProfileNotFound
	}
	return p, nil
}

// Put adds or replaces a profile.
func (m *MockProfileStore) Put(userID string, p domainauth.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = p
}

// MockMFAVerifier accepts a single configured code.
type MockMFAVerifier struct {
	VerifyFunc func(ctx context.Context, userID, code string) (bool, error)

	// AcceptCode is the only code the default behavior accepts.
	AcceptCode string
}

func (m *MockMFAVerifier) Verify(ctx context.Context, userID, code string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, code)
	}
	return code != "" && code == m.AcceptCode, nil
}

// FailingStorageBackend errors on every call. It exercises the guarantee
// that storage faults never block login, logout, or refresh.
type FailingStorageBackend struct {
	mu    sync.Mutex
	calls int
}

func (b *FailingStorageBackend) Get(context.Context, string) (string, error) {
	return "", b.fail("get")
}

func (b *FailingStorageBackend) Set(context.Context, string, string) error {
	return b.fail("set")
}

func (b *FailingStorageBackend) Remove(context.Context, string) error {
	return b.fail("remove")
}

// Calls returns how many operations were attempted.
func (b *FailingStorageBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *FailingStorageBackend) fail(op string) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return fmt.Errorf("storage backend unavailable: %s", op)
}

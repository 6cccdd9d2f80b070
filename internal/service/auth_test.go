package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmgate/sessiond/config"
	"github.com/helmgate/sessiond/internal/adapters/memstore"
	"github.com/helmgate/sessiond/internal/adapters/storage"
	"github.com/helmgate/sessiond/internal/data"
	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	mocks "github.com/helmgate/sessiond/internal/mocks/auth"
	"github.com/helmgate/sessiond/internal/ports"
)

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{
		Timeout:             60 * time.Minute,
		MaxFailedAttempts:   3,
		LockoutDuration:     15 * time.Minute,
		RefreshLead:         5 * time.Minute,
		ExpiryCheckInterval: time.Hour,
		Password: config.PasswordPolicyConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumbers:   true,
		},
	}
}

type fixture struct {
	provider *mocks.MockIdentityProvider
	profiles *mocks.MockProfileStore
	mfa      *mocks.MockMFAVerifier
	backend  *memstore.Backend
	clock    *data.FixedTimeProvider
	svc      *AuthService
}

func newFixture(t *testing.T, cfg config.SessionConfig) *fixture {
	t.Helper()

	provider := mocks.NewMockIdentityProvider()
	profiles := mocks.NewMockProfileStore(map[string]domainauth.Profile{
		provider.UserID: {
			Role:        domainauth.RoleUser,
			TenantID:    "tenant-1",
			Permissions: []string{"reports:read"},
		},
	})
	mfa := &mocks.MockMFAVerifier{AcceptCode: "123456"}
	backend := memstore.NewBackend()
	adapter := storage.Select(context.Background(), backend, nil)
	clock := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	store, err := NewSessionStore(SessionStoreOptions{Storage: adapter, Clock: clock})
	require.NoError(t, err)

	svc, err := NewAuthService(AuthServiceOptions{
		Provider: provider,
		Profiles: profiles,
		MFA:      mfa,
		Sessions: store,
		Config:   cfg,
		Clock:    clock,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Destroy)

	return &fixture{
		provider: provider,
		profiles: profiles,
		mfa:      mfa,
		backend:  backend,
		clock:    clock,
		svc:      svc,
	}
}

func (f *fixture) goodCredentials() domainauth.Credentials {
	return domainauth.Credentials{Email: f.provider.Email, Password: f.provider.Password}
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	sess, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.Equal(t, f.clock.Now().Add(60*time.Minute), sess.ExpiresAt)
	assert.Equal(t, f.provider.UserID, sess.User.ID)
	assert.Equal(t, domainauth.RoleUser, sess.User.Role)
	assert.Equal(t, "tenant-1", sess.User.TenantID)
	assert.Equal(t, f.clock.Now(), sess.User.LastLoginAt)
	assert.True(t, f.svc.IsSessionValid())
	require.NotNil(t, f.svc.CurrentUser())

	// The session is mirrored to the persistent backend.
	assert.Equal(t, 1, f.backend.Len())
}

func TestAuthService_Login_RememberMeExtendsTimeout(t *testing.T) {
	f := newFixture(t, sessionConfig())

	creds := f.goodCredentials()
	creds.RememberMe = true
	sess, err := f.svc.Login(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, f.clock.Now().Add(24*60*time.Minute), sess.ExpiresAt)
}

func TestAuthService_Login_PolicyViolationCountsTowardLockout(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	creds := f.goodCredentials()
	creds.Password = "weak"

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, creds)
		require.ErrorIs(t, err, ErrPolicyViolation)
	}

	// The identity provider was never contacted.
	assert.Equal(t, 0, f.provider.SignInCalls())

	// Three policy violations lock the identifier even for good credentials.
	_, err := f.svc.Login(ctx, f.goodCredentials())
	assert.True(t, IsLockedOut(err))
}

func TestAuthService_Login_MalformedCredentialsRejected(t *testing.T) {
	f := newFixture(t, sessionConfig())

	_, err := f.svc.Login(context.Background(), domainauth.Credentials{
		Email:    "not-an-email",
		Password: "Sup3r-secret",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, f.provider.SignInCalls())
}

func TestAuthService_Login_LockoutScenario(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	bad := f.goodCredentials()
	bad.Password = "Wrong-password1"

	for i := 0; i < 3; i++ {
		_, err := f.svc.Login(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// The fourth attempt is rejected up front, correct password or not.
	_, err := f.svc.Login(ctx, f.goodCredentials())
	var locked *LockedOutError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), locked.Until)
	assert.Equal(t, 3, f.provider.SignInCalls())

	// Once the window elapses the same credentials go through.
	f.clock.AddTime(15*time.Minute + time.Second)
	_, err = f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)
}

func TestAuthService_Login_SuccessClearsFailureRecord(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	bad := f.goodCredentials()
	bad.Password = "Wrong-password1"

	_, err := f.svc.Login(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)

	// The counter restarted from zero: two more failures do not lock.
	_, _ = f.svc.Login(ctx, bad)
	_, err = f.svc.Login(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, IsLockedOut(err))
}

func TestAuthService_Login_ProfileFetchFailureDoesNotCountTowardLockout(t *testing.T) {
	cfg := sessionConfig()
	cfg.MaxFailedAttempts = 1
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.profiles.FetchFunc = func(context.Context, string) (domainauth.Profile, error) {
		return domainauth.Profile{}, errors.New("profile db down")
	}
	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.ErrorIs(t, err, ErrProfileFetchFailed)
	assert.Nil(t, f.svc.CurrentSession())

	// The credential was valid, so the identifier is not locked.
	f.profiles.FetchFunc = nil
	_, err = f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)
}

func TestAuthService_Login_MissingProfileSurfacesAsFetchFailure(t *testing.T) {
	f := newFixture(t, sessionConfig())

	f.provider.UserID = "unknown-user"
	_, err := f.svc.Login(context.Background(), f.goodCredentials())
	require.ErrorIs(t, err, ErrProfileFetchFailed)
	assert.ErrorContains(t, err, ports.ErrProfileNotFound.Error())
}

func TestAuthService_Login_MFAFlow(t *testing.T) {
	cfg := sessionConfig()
	cfg.RequireMFA = true
	cfg.MaxFailedAttempts = 1
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.profiles.Put(f.provider.UserID, domainauth.Profile{
		Role:       domainauth.RoleUser,
		MFAEnabled: true,
	})

	// No code supplied: MFARequired, and nothing recorded toward lockout.
	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.ErrorIs(t, err, ErrMFARequired)

	creds := f.goodCredentials()
	creds.MFACode = "123456"
	sess, err := f.svc.Login(ctx, creds)
	require.NoError(t, err)
	assert.True(t, sess.User.MFAEnabled)
}

func TestAuthService_Login_InvalidMFACountsTowardLockout(t *testing.T) {
	cfg := sessionConfig()
	cfg.RequireMFA = true
	cfg.MaxFailedAttempts = 1
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.profiles.Put(f.provider.UserID, domainauth.Profile{
		Role:       domainauth.RoleUser,
		MFAEnabled: true,
	})

	creds := f.goodCredentials()
	creds.MFACode = "000000"
	_, err := f.svc.Login(ctx, creds)
	require.ErrorIs(t, err, ErrInvalidMFA)

	creds.MFACode = "123456"
	_, err = f.svc.Login(ctx, creds)
	assert.True(t, IsLockedOut(err))
}

func TestAuthService_Login_SkipsMFAWhenProfileHasItDisabled(t *testing.T) {
	cfg := sessionConfig()
	cfg.RequireMFA = true
	f := newFixture(t, cfg)

	// Profile has MFA disabled, so no code is demanded.
	sess, err := f.svc.Login(context.Background(), f.goodCredentials())
	require.NoError(t, err)
	assert.False(t, sess.User.MFAEnabled)
}

func TestAuthService_RefreshSession_NoSessionIsNoOp(t *testing.T) {
	f := newFixture(t, sessionConfig())

	assert.Nil(t, f.svc.RefreshSession(context.Background()))
	assert.Equal(t, 0, f.provider.RefreshCalls())
	assert.Equal(t, 0, f.backend.Len())
}

func TestAuthService_RefreshSession_UpdatesTokensAndExpiry(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	first, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)

	f.clock.AddTime(30 * time.Minute)
	refreshed := f.svc.RefreshSession(ctx)
	require.NotNil(t, refreshed)

	assert.NotEqual(t, first.AccessToken, refreshed.AccessToken)
	assert.Equal(t, f.clock.Now().Add(60*time.Minute), refreshed.ExpiresAt)
	assert.Equal(t, first.User.ID, refreshed.User.ID)

	current := f.svc.CurrentSession()
	require.NotNil(t, current)
	assert.Equal(t, refreshed.AccessToken, current.AccessToken)
}

func TestAuthService_RefreshSession_FailureLogsOut(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)

	f.provider.RefreshFunc = func(context.Context, string) (domainauth.TokenBundle, error) {
		return domainauth.TokenBundle{}, errors.New("refresh token revoked")
	}

	assert.Nil(t, f.svc.RefreshSession(ctx))
	assert.Nil(t, f.svc.CurrentSession())
	assert.False(t, f.svc.IsSessionValid())
	assert.Equal(t, 1, f.provider.SignOutCalls())
	assert.Equal(t, 0, f.backend.Len())
}

func TestAuthService_LogoutWinsOverInFlightRefresh(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)

	inRefresh := make(chan struct{}, 1)
	release := make(chan struct{})
	f.provider.RefreshFunc = func(context.Context, string) (domainauth.TokenBundle, error) {
		inRefresh <- struct{}{}
		<-release
		return domainauth.TokenBundle{
			AccessToken:  "late-access",
			RefreshToken: "late-refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
			UserID:       f.provider.UserID,
		}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.svc.RefreshSession(ctx)
	}()

	<-inRefresh
	f.svc.Logout(ctx)
	close(release)
	wg.Wait()

	// The late-arriving refresh result must not resurrect the session.
	assert.Nil(t, f.svc.CurrentSession())
	assert.False(t, f.svc.IsSessionValid())
	assert.Equal(t, 0, f.backend.Len())
}

func TestAuthService_ConcurrentRefreshAndLogoutNeverResurrects(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	// Whatever order the two goroutines interleave in, a session must
	// never survive a completed logout: either the logout wipes the
	// refreshed session, or the refresher's generation check discards
	// its result.
	for i := 0; i < 500; i++ {
		_, err := f.svc.Login(ctx, f.goodCredentials())
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.svc.RefreshSession(ctx)
		}()
		go func() {
			defer wg.Done()
			f.svc.Logout(ctx)
		}()
		wg.Wait()

		require.Nil(t, f.svc.CurrentSession())
		require.False(t, f.svc.IsSessionValid())
		require.Equal(t, 0, f.backend.Len())
	}
}

func TestAuthService_Logout_SignOutFailureStillClearsSession(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)

	f.provider.SignOutFunc = func(context.Context, string) error {
		return errors.New("provider unreachable")
	}
	f.svc.Logout(ctx)

	assert.Nil(t, f.svc.CurrentSession())
	assert.Equal(t, 0, f.backend.Len())
}

func TestAuthService_PermissionAndRoleChecks(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	// No current user: false, not an error.
	assert.False(t, f.svc.HasPermission("reports:read"))
	assert.False(t, f.svc.HasRole(domainauth.RoleUser))

	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)

	assert.True(t, f.svc.HasPermission("reports:read"))
	assert.False(t, f.svc.HasPermission("admin:anything"))
	assert.True(t, f.svc.HasRole(domainauth.RoleUser))
	assert.False(t, f.svc.HasRole(domainauth.RoleAdmin))
}

func TestAuthService_OwnerPassesEveryPermissionCheck(t *testing.T) {
	f := newFixture(t, sessionConfig())

	f.profiles.Put(f.provider.UserID, domainauth.Profile{Role: domainauth.RoleOwner})
	_, err := f.svc.Login(context.Background(), f.goodCredentials())
	require.NoError(t, err)

	assert.True(t, f.svc.HasPermission("anything:at:all"))
	assert.True(t, f.svc.HasRole(domainauth.RoleOwner))
}

func TestAuthService_StartRestoresPersistedSession(t *testing.T) {
	f := newFixture(t, sessionConfig())
	ctx := context.Background()

	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)
	f.svc.Destroy()

	// A second service over the same backend simulates a process restart.
	adapter := storage.Select(ctx, f.backend, nil)
	store, err := NewSessionStore(SessionStoreOptions{Storage: adapter, Clock: f.clock})
	require.NoError(t, err)
	svc, err := NewAuthService(AuthServiceOptions{
		Provider: f.provider,
		Profiles: f.profiles,
		MFA:      f.mfa,
		Sessions: store,
		Config:   sessionConfig(),
		Clock:    f.clock,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Destroy)

	svc.Start(ctx)

	require.NotNil(t, svc.CurrentSession())
	assert.True(t, svc.IsSessionValid())
	assert.Equal(t, f.provider.UserID, svc.CurrentUser().ID)
}

func TestAuthService_ExpiryInsideLeadRefreshesImmediately(t *testing.T) {
	cfg := sessionConfig()
	cfg.Timeout = 4 * time.Minute
	cfg.RefreshLead = 5 * time.Minute
	f := newFixture(t, cfg)

	_, err := f.svc.Login(context.Background(), f.goodCredentials())
	require.NoError(t, err)

	// The session expires inside the lead window, so a refresh fires
	// immediately instead of arming a negative-delay timer.
	require.Eventually(t, func() bool { return f.provider.RefreshCalls() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestAuthService_ExpiryCheckForcesLogout(t *testing.T) {
	cfg := sessionConfig()
	cfg.ExpiryCheckInterval = 10 * time.Millisecond
	f := newFixture(t, cfg)
	ctx := context.Background()

	f.svc.Start(ctx)
	_, err := f.svc.Login(ctx, f.goodCredentials())
	require.NoError(t, err)

	// Jump past expiry; the safety-net check must force a logout.
	f.clock.AddTime(2 * time.Hour)
	require.Eventually(t, func() bool { return f.svc.CurrentSession() == nil },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.provider.SignOutCalls())
}

func TestAuthService_FailingStorageNeverBlocksLifecycle(t *testing.T) {
	provider := mocks.NewMockIdentityProvider()
	profiles := mocks.NewMockProfileStore(map[string]domainauth.Profile{
		provider.UserID: {Role: domainauth.RoleUser},
	})
	clock := data.NewFixedTimeProvider(time.Now())

	// A backend that passes the probe and then fails every call exercises
	// the swallow-and-log path rather than the probe fallback.
	backend := newFlakyBackend(3)
	adapter := storage.Select(context.Background(), backend, nil)
	require.True(t, adapter.Persistent())

	store, err := NewSessionStore(SessionStoreOptions{Storage: adapter, Clock: clock})
	require.NoError(t, err)
	svc, err := NewAuthService(AuthServiceOptions{
		Provider: provider,
		Profiles: profiles,
		Sessions: store,
		Config:   sessionConfig(),
		Clock:    clock,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Destroy)

	ctx := context.Background()
	sess, err := svc.Login(ctx, domainauth.Credentials{
		Email:    provider.Email,
		Password: provider.Password,
	})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.True(t, svc.IsSessionValid())

	require.NotNil(t, svc.RefreshSession(ctx))

	svc.Logout(ctx)
	assert.Nil(t, svc.CurrentSession())
}

// flakyBackend succeeds for the first allow calls (enough to pass the
// startup probe) and errors afterwards.
type flakyBackend struct {
	mu    sync.Mutex
	inner *memstore.Backend
	allow int
}

func newFlakyBackend(allow int) *flakyBackend {
	return &flakyBackend{inner: memstore.NewBackend(), allow: allow}
}

func (b *flakyBackend) spend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allow == 0 {
		return false
	}
	b.allow--
	return true
}

func (b *flakyBackend) Get(ctx context.Context, key string) (string, error) {
	if !b.spend() {
		return "", errors.New("storage backend failing")
	}
	return b.inner.Get(ctx, key)
}

func (b *flakyBackend) Set(ctx context.Context, key, value string) error {
	if !b.spend() {
		return errors.New("storage backend failing")
	}
	return b.inner.Set(ctx, key, value)
}

func (b *flakyBackend) Remove(ctx context.Context, key string) error {
	if !b.spend() {
		return errors.New("storage backend failing")
	}
	return b.inner.Remove(ctx, key)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helmgate/sessiond/config"
	"github.com/helmgate/sessiond/internal/data"
	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/observability/statsd"
	"github.com/helmgate/sessiond/internal/ports"
)

// rememberMeMultiplier extends the session timeout for remember-me logins.
const rememberMeMultiplier = 24

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.IdentityProvider // Required: external IdP
	Profiles ports.ProfileStore     // Required: authoritative role/permission source
	MFA      ports.MFAVerifier      // Optional unless RequireMFA is set
	Sessions *SessionStore          // Required: session ownership and persistence
	Config   config.SessionConfig   // Session lifecycle configuration
	Logger   *slog.Logger           // Optional: structured logger
	Metrics  statsd.Sink            // Optional: metrics sink
	Clock    data.TimeProvider      // Optional: defaults to real time
}

// AuthService orchestrates the session lifecycle: it gates logins through
// the password policy and lockout tracker, talks to the identity provider
// and profile store, owns the current session, and keeps it renewed through
// the refresh scheduler. Construct one per composition root; tests construct
// isolated instances.
type AuthService struct {
	provider ports.IdentityProvider
	profiles ports.ProfileStore
	mfa      ports.MFAVerifier
	sessions *SessionStore
	lockout  *LockoutTracker
	config   config.SessionConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	clock    data.TimeProvider
	validate *validator.Validate

	scheduler *RefreshScheduler

	// mu guards generation and timeout. generation increments on every
	// login and logout so an in-flight refresh can detect that the session
	// it started from is gone and discard its result.
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewAuthService constructs an AuthService. Call Start to restore a
// persisted session and launch the background timers, and Destroy to tear
// them down.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Provider == nil {
		return nil, errors.New("identity provider is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if opts.Config.RequireMFA && opts.MFA == nil {
		return nil, errors.New("MFA verifier is required when RequireMFA is set")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &AuthService{
		provider: opts.Provider,
		profiles: opts.Profiles,
		mfa:      opts.MFA,
		sessions: opts.Sessions,
		lockout:  NewLockoutTracker(opts.Config.MaxFailedAttempts, opts.Config.LockoutDuration, clock),
		config:   opts.Config,
		logger:   logger.With("component", "auth_service"),
		metrics:  opts.Metrics,
		clock:    clock,
		validate: validator.New(),
		timeout:  opts.Config.Timeout,
		ctx:      ctx,
		cancel:   cancel,
	}

	scheduler, err := NewRefreshScheduler(RefreshSchedulerOptions{
		Lead:          opts.Config.RefreshLead,
		CheckInterval: opts.Config.ExpiryCheckInterval,
		OnRefresh:     s.backgroundRefresh,
		OnCheck:       s.expiryCheck,
		Logger:        logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create refresh scheduler: %w", err)
	}
	s.scheduler = scheduler

	return s, nil
}

// Start restores a persisted session when the backend is persistent and
// launches the background refresh and expiry-check tasks.
func (s *AuthService) Start(ctx context.Context) {
	s.sessions.LoadFromBackend(ctx)
	s.scheduler.Start(s.ctx)

	if sess := s.sessions.Current(); sess != nil {
		s.logger.InfoContext(ctx, "restored persisted session",
			"user_id", sess.User.ID, "expires_at", sess.ExpiresAt)
		s.armOrRefresh(*sess, true)
	}
}

// Destroy cancels both background timers deterministically. No timer
// callback fires after Destroy returns. The session itself is left as-is;
// call Logout first for a clean sign-out.
func (s *AuthService) Destroy() {
	s.cancel()
	s.scheduler.Destroy()
}

// Login authenticates the credentials and establishes the current session.
// Any failure leaves the service in exactly the pre-call state: no partial
// session, no armed timer.
func (s *AuthService) Login(ctx context.Context, creds domainauth.Credentials) (*domainauth.Session, error) {
	identifier := creds.Email

	if s.lockout.IsLocked(identifier) {
		s.count("login.lockout")
		return nil, &LockedOutError{Until: s.lockout.LockoutEndsAt(identifier)}
	}

	if err := s.validate.Struct(creds); err != nil {
		s.recordFailure(ctx, identifier, "malformed_credentials")
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, "credential shape invalid")
	}

	// Policy violations count toward lockout, same as provider rejections.
	if !domainauth.ValidatePassword(creds.Password, s.config.Password.ToPolicy()) {
		s.recordFailure(ctx, identifier, "policy_violation")
		return nil, ErrPolicyViolation
	}

	bundle, err := s.provider.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		s.recordFailure(ctx, identifier, "provider_rejected")
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, err)
	}
	if bundle.UserID == "" {
		s.recordFailure(ctx, identifier, "no_user")
		return nil, ErrInvalidCredentials
	}

	profile, err := s.profiles.FetchProfile(ctx, bundle.UserID)
	if err != nil {
		// The credential was valid; an unreadable profile is an
		// infrastructure fault and does not count toward lockout.
		return nil, fmt.Errorf("%w: %s", ErrProfileFetchFailed, err)
	}

	if s.config.RequireMFA && profile.MFAEnabled {
		if creds.MFACode == "" {
			return nil, ErrMFARequired
		}
		ok, verifyErr := s.mfa.Verify(ctx, bundle.UserID, creds.MFACode)
		if verifyErr != nil || !ok {
			s.recordFailure(ctx, identifier, "mfa_rejected")
			if verifyErr != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidMFA, verifyErr)
			}
			return nil, ErrInvalidMFA
		}
	}

	now := s.clock.Now()
	timeout := s.config.Timeout
	if creds.RememberMe {
		timeout *= rememberMeMultiplier
	}

	session := domainauth.Session{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		ExpiresAt:    now.Add(timeout),
		User: domainauth.User{
			ID:          bundle.UserID,
			Email:       creds.Email,
			Role:        profile.Role,
			TenantID:    profile.TenantID,
			Permissions: profile.Permissions,
			LastLoginAt: now,
			MFAEnabled:  profile.MFAEnabled,
		},
	}

	s.lockout.Clear(identifier)

	s.mu.Lock()
	s.generation++
	s.timeout = timeout
	s.sessions.Create(ctx, session)
	s.mu.Unlock()

	s.armOrRefresh(session, true)
	s.count("login.success")
	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", session.User.ID, "role", session.User.Role, "expires_at", session.ExpiresAt)

	return &session, nil
}

// Logout tears down the current session: the refresh timer is disarmed, the
// provider sign-out is attempted best-effort, and local state is cleared
// regardless of the provider outcome. Once Logout has been called, a refresh
// still in flight cannot resurrect the session.
func (s *AuthService) Logout(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.scheduler.Disarm()
	cur := s.sessions.Current()
	// Clear inside the critical section: a refresher applying its result
	// also holds s.mu, so it either lands before this (and is wiped here)
	// or after (and its generation check discards it).
	s.sessions.Clear(ctx)
	s.mu.Unlock()

	if cur != nil {
		if err := s.provider.SignOut(ctx, cur.AccessToken); err != nil {
			// Best effort: the local session must clear regardless.
			s.logger.WarnContext(ctx, "provider sign-out failed", "error", err)
		}
	}

	s.logger.InfoContext(ctx, "logged out")
}

// RefreshSession renews the current session's tokens. With no current
// session it is a no-op returning nil. A refresh the provider rejects ends
// in a full logout: the caller's only actionable response is
// re-authentication, so no granular error is surfaced.
func (s *AuthService) RefreshSession(ctx context.Context) *domainauth.Session {
	// Generation and session are sampled under one lock acquisition so a
	// logout cannot slip between the two reads.
	s.mu.Lock()
	gen := s.generation
	cur := s.sessions.Current()
	s.mu.Unlock()
	if cur == nil {
		return nil
	}

	bundle, err := s.provider.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		s.logger.WarnContext(ctx, "session refresh failed, logging out", "error", err)
		s.count("refresh.failure")
		s.Logout(ctx)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		// A logout or a newer login won the race; discard the result
		// rather than resurrecting a dead session.
		s.logger.InfoContext(ctx, "discarding stale refresh result")
		return nil
	}

	updated := *cur
	updated.AccessToken = bundle.AccessToken
	if bundle.RefreshToken != "" {
		updated.RefreshToken = bundle.RefreshToken
	}
	updated.ExpiresAt = s.clock.Now().Add(s.timeout)

	s.sessions.Create(ctx, updated)
	// No immediate-refresh fallback here: a renewed session that is still
	// inside the lead window would otherwise refresh in a hot loop. The
	// periodic expiry check covers it instead.
	s.armOrRefresh(updated, false)
	s.count("refresh.success")
	return &updated
}

// CurrentSession returns a copy of the current session, or nil.
func (s *AuthService) CurrentSession() *domainauth.Session {
	return s.sessions.Current()
}

// CurrentUser returns a copy of the current user, or nil.
func (s *AuthService) CurrentUser() *domainauth.User {
	sess := s.sessions.Current()
	if sess == nil {
		return nil
	}
	user := sess.User
	return &user
}

// IsSessionValid reports whether a session exists and has not expired.
func (s *AuthService) IsSessionValid() bool {
	return s.sessions.IsValid()
}

// HasPermission reports whether the current user holds the permission.
// The highest-privilege role passes every permission check. With no current
// user this is false, not an error.
func (s *AuthService) HasPermission(permission string) bool {
	user := s.CurrentUser()
	if user == nil {
		return false
	}
	if user.Role == domainauth.RoleOwner {
		return true
	}
	return user.HasPermission(permission)
}

// HasRole reports whether the current user has exactly the given role.
func (s *AuthService) HasRole(role domainauth.Role) bool {
	user := s.CurrentUser()
	return user != nil && user.Role == role
}

// armOrRefresh arms the proactive refresh timer for the session. When the
// expiry is already inside the lead window the timer is never armed with a
// negative delay; instead an immediate background refresh runs, if allowed.
func (s *AuthService) armOrRefresh(sess domainauth.Session, allowImmediate bool) {
	now := s.clock.Now()
	if sess.ExpiresAt.Add(-s.scheduler.Lead()).After(now) {
		s.scheduler.Arm(sess.ExpiresAt, now)
		return
	}
	if !allowImmediate {
		s.logger.Info("renewed session still inside refresh lead, leaving expiry to the periodic check",
			"expires_at", sess.ExpiresAt)
		return
	}
	s.logger.Info("session expiry inside refresh lead, refreshing now",
		"expires_at", sess.ExpiresAt)
	go s.RefreshSession(s.ctx)
}

// backgroundRefresh is the scheduler's proactive-renewal callback.
func (s *AuthService) backgroundRefresh(ctx context.Context) {
	s.RefreshSession(ctx)
}

// expiryCheck is the scheduler's safety-net callback. It forces a logout
// when the session expired between scheduled refreshes (clock skew,
// external invalidation, or a missed timer).
func (s *AuthService) expiryCheck(ctx context.Context) {
	if s.sessions.Current() == nil || s.sessions.IsValid() {
		return
	}
	s.logger.InfoContext(ctx, "session expired, forcing logout")
	s.count("session.expired")
	s.Logout(ctx)
}

func (s *AuthService) recordFailure(ctx context.Context, identifier, reason string) {
	s.lockout.RecordFailure(identifier)
	s.count("login.failure")
	s.logger.InfoContext(ctx, "login attempt failed", "reason", reason)
}

func (s *AuthService) count(name string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, nil)
	}
}

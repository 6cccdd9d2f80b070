package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/helmgate/sessiond/internal/adapters/storage"
	"github.com/helmgate/sessiond/internal/data"
	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/ports"
)

// defaultSessionKey is the storage key for the persisted session payload.
const defaultSessionKey = "session:current"

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Storage *storage.Adapter   // Required: probed storage adapter
	Logger  *slog.Logger       // Optional: structured logger
	Clock   data.TimeProvider  // Optional: defaults to real time
	Key     string             // Optional: storage key override
}

// SessionStore owns the current in-memory session and mirrors it through the
// storage adapter when the backend is persistent. The in-memory copy is the
// source of truth; persistence is a best-effort cache, so storage faults are
// logged and never propagated to callers.
type SessionStore struct {
	mu      sync.RWMutex
	current *domainauth.Session

	storage *storage.Adapter
	logger  *slog.Logger
	clock   data.TimeProvider
	key     string
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.Storage == nil {
		return nil, errors.New("storage adapter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	key := opts.Key
	if key == "" {
		key = defaultSessionKey
	}
	return &SessionStore{
		storage: opts.Storage,
		logger:  logger.With("component", "session_store"),
		clock:   clock,
		key:     key,
	}, nil
}

// Create replaces the current session and mirrors it to persistent storage
// when available.
func (s *SessionStore) Create(ctx context.Context, sess domainauth.Session) {
	s.mu.Lock()
	copied := sess
	s.current = &copied
	s.mu.Unlock()

	if !s.storage.Persistent() {
		return
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal session for persistence failed", "error", err)
		return
	}
	if err := s.storage.Backend().Set(ctx, s.key, string(payload)); err != nil {
		s.logger.WarnContext(ctx, "persist session failed, continuing with in-memory session",
			"error", err)
	}
}

// Current returns a copy of the current session, or nil when logged out.
func (s *SessionStore) Current() *domainauth.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// IsValid reports whether a session exists and has not expired.
func (s *SessionStore) IsValid() bool {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil && !s.current.IsExpired(now)
}

// LoadFromBackend restores a persisted session, if the backend is persistent
// and holds one that still passes the staleness check. Corrupt or stale
// payloads are discarded and removed, never surfaced as errors.
func (s *SessionStore) LoadFromBackend(ctx context.Context) {
	if !s.storage.Persistent() {
		return
	}

	payload, err := s.storage.Backend().Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ports.ErrKeyNotFound) {
			s.logger.WarnContext(ctx, "load persisted session failed", "error", err)
		}
		return
	}

	var sess domainauth.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		s.logger.WarnContext(ctx, "discarding corrupt persisted session", "error", err)
		s.removePersisted(ctx)
		return
	}
	if !s.isStoredSessionValid(sess) {
		s.logger.InfoContext(ctx, "discarding stale persisted session")
		s.removePersisted(ctx)
		return
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
}

// Clear drops the in-memory session and removes the persisted copy.
func (s *SessionStore) Clear(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if s.storage.Persistent() {
		s.removePersisted(ctx)
	}
}

// isStoredSessionValid revalidates a session read back from storage: the
// user and access token must be present and the expiry still in the future.
func (s *SessionStore) isStoredSessionValid(sess domainauth.Session) bool {
	if sess.User.ID == "" || sess.AccessToken == "" {
		return false
	}
	return !sess.IsExpired(s.clock.Now())
}

func (s *SessionStore) removePersisted(ctx context.Context) {
	if err := s.storage.Backend().Remove(ctx, s.key); err != nil {
		s.logger.WarnContext(ctx, "remove persisted session failed", "error", err)
	}
}

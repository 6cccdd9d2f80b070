package service

import (
	"sync"
	"time"

	"github.com/helmgate/sessiond/internal/data"
)

// failedAttempt tracks login failures for a single identifier.
type failedAttempt struct {
	count       int
	lastAttempt time.Time
}

// LockoutTracker counts failed login attempts per identifier and enforces a
// sliding lockout window. Records live in process memory only: a restart
// clears all lockouts.
//
// Note the read/write asymmetry: IsLocked accounts for an elapsed window in
// its time check but never resets the counter; only the next RecordFailure
// does. A long-idle locked identifier therefore reports "not locked" once
// the window passes, while its stale count survives until the next failure.
type LockoutTracker struct {
	mu       sync.Mutex
	attempts map[string]failedAttempt

	maxAttempts int
	duration    time.Duration
	clock       data.TimeProvider
}

// NewLockoutTracker creates a tracker that locks an identifier after
// maxAttempts failures within the sliding duration window.
func NewLockoutTracker(maxAttempts int, duration time.Duration, clock data.TimeProvider) *LockoutTracker {
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &LockoutTracker{
		attempts:    make(map[string]failedAttempt),
		maxAttempts: maxAttempts,
		duration:    duration,
		clock:       clock,
	}
}

// RecordFailure registers a failed attempt for the identifier. A failure
// arriving after the window has elapsed resets the counter before counting.
func (t *LockoutTracker) RecordFailure(identifier string) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.attempts[identifier]
	if !rec.lastAttempt.IsZero() && now.Sub(rec.lastAttempt) > t.duration {
		rec.count = 0
	}
	rec.count++
	rec.lastAttempt = now
	t.attempts[identifier] = rec
}

// IsLocked reports whether the identifier is currently locked out.
// Unknown identifiers are never locked.
func (t *LockoutTracker) IsLocked(identifier string) bool {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.attempts[identifier]
	if !ok {
		return false
	}
	return rec.count >= t.maxAttempts && now.Before(rec.lastAttempt.Add(t.duration))
}

// LockoutEndsAt returns the instant the identifier's lockout window ends,
// or the zero time when the identifier has never failed.
func (t *LockoutTracker) LockoutEndsAt(identifier string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.attempts[identifier]
	if !ok {
		return time.Time{}
	}
	return rec.lastAttempt.Add(t.duration)
}

// Clear drops the identifier's record. Called on successful login.
func (t *LockoutTracker) Clear(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, identifier)
}

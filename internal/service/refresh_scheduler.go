package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// RefreshSchedulerOptions groups dependencies for RefreshScheduler.
type RefreshSchedulerOptions struct {
	// Lead is how long before session expiry the proactive refresh fires.
	Lead time.Duration
	// CheckInterval is the cadence of the safety-net expiry check.
	CheckInterval time.Duration
	// OnRefresh is invoked when the proactive refresh timer fires.
	OnRefresh func(ctx context.Context)
	// OnCheck is invoked on every safety-net tick. It is expected to force
	// a logout when the current session has expired underneath the timer.
	OnCheck func(ctx context.Context)
	Logger  *slog.Logger
}

// RefreshScheduler drives two background tasks for the session lifecycle:
// a one-shot timer that proactively renews the session ahead of expiry, and
// an independent periodic check that catches expiry the timer missed (clock
// skew, external invalidation). Both are cancelled deterministically by
// Destroy; callbacks run on a single loop goroutine, so once Destroy returns
// no callback is running or will run.
type RefreshScheduler struct {
	lead          time.Duration
	checkInterval time.Duration
	onRefresh     func(ctx context.Context)
	onCheck       func(ctx context.Context)
	logger        *slog.Logger

	mu        sync.Mutex
	timer     *time.Timer
	armed     bool
	started   bool
	destroyed bool

	fireCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRefreshScheduler constructs a RefreshScheduler. Start must be called
// before any timer fires.
func NewRefreshScheduler(opts RefreshSchedulerOptions) (*RefreshScheduler, error) {
	if opts.OnRefresh == nil {
		return nil, errors.New("OnRefresh callback is required")
	}
	if opts.OnCheck == nil {
		return nil, errors.New("OnCheck callback is required")
	}
	lead := opts.Lead
	if lead <= 0 {
		lead = 5 * time.Minute
	}
	interval := opts.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshScheduler{
		lead:          lead,
		checkInterval: interval,
		onRefresh:     opts.OnRefresh,
		onCheck:       opts.OnCheck,
		logger:        logger.With("component", "refresh_scheduler"),
		fireCh:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}, nil
}

// Start launches the callback loop and the periodic expiry check.
// It is a no-op when called more than once.
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.destroyed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
}

// Lead returns how long before session expiry the proactive refresh fires.
func (s *RefreshScheduler) Lead() time.Duration { return s.lead }

// Arm schedules the proactive refresh at expiresAt minus the lead time,
// replacing any previously armed timer. It reports false without arming
// when the computed delay is not in the future; the caller is then
// responsible for an immediate refresh (or logout).
func (s *RefreshScheduler) Arm(expiresAt, now time.Time) bool {
	delay := expiresAt.Add(-s.lead).Sub(now)
	if delay <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}
	s.stopTimerLocked()
	s.armed = true
	s.timer = time.AfterFunc(delay, s.queueFire)
	return true
}

// Disarm cancels any pending proactive refresh. Called on logout.
func (s *RefreshScheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	// Drop a fire that was queued but not yet consumed by the loop.
	select {
	case <-s.fireCh:
	default:
	}
}

// Destroy cancels both timers and waits for the callback loop to drain.
// After Destroy returns, no callback fires.
func (s *RefreshScheduler) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.stopTimerLocked()
	started := s.started
	close(s.stopCh)
	s.mu.Unlock()

	if started {
		s.wg.Wait()
	}
}

func (s *RefreshScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-s.fireCh:
			if s.consumeArmed() {
				s.onRefresh(ctx)
			}
		case <-ticker.C:
			s.onCheck(ctx)
		}
	}
}

// queueFire hands the timer expiry to the loop without blocking the
// runtime timer goroutine.
func (s *RefreshScheduler) queueFire() {
	select {
	case s.fireCh <- struct{}{}:
	default:
	}
}

// consumeArmed atomically claims a pending fire; a fire that raced with
// Disarm is dropped here.
func (s *RefreshScheduler) consumeArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed || s.destroyed {
		return false
	}
	s.armed = false
	s.timer = nil
	return true
}

func (s *RefreshScheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armed = false
}

// Package scheduler runs the daily credit reset.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultCheckInterval is how often the wall clock is sampled.
	DefaultCheckInterval = time.Second
	// DefaultAttemptTimeout bounds one reset attempt.
	DefaultAttemptTimeout = 30 * time.Second
	// DefaultMaxAttempts is how many times a failing reset is tried per day.
	DefaultMaxAttempts = 3

	dateLayout = "2006-01-02"
)

// Resetter restores every user's balance.
type Resetter interface {
	ResetAll(ctx context.Context, value int) (int64, error)
}

// Config configures a ResetScheduler.
type Config struct {
	Hour           int
	Minute         int
	Location       *time.Location
	CheckInterval  time.Duration
	Credits        int
	AttemptTimeout time.Duration
	MaxAttempts    int
}

// ResetScheduler fires Resetter.ResetAll once per day when the wall clock
// crosses the configured time. State is in memory only, so a restart after
// the trigger on the same day does not fire again, and a restart right
// before it may fire twice in one day.
type ResetScheduler struct {
	resetter Resetter
	clock    Clock
	cfg      Config
	logger   *slog.Logger

	lastCheck time.Time
	lastFired string

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewResetScheduler creates a scheduler. A nil clock uses the system clock.
func NewResetScheduler(resetter Resetter, cfg Config, clock Clock, logger *slog.Logger) *ResetScheduler {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &ResetScheduler{
		resetter: resetter,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With("component", "scheduler.reset"),
	}
}

// Run samples the clock until ctx is cancelled or Shutdown is called.
// Reset failures are logged and never end the loop.
func (s *ResetScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.started = true
	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	defer close(s.done)

	s.logger.Info("reset scheduler started",
		"time", time.Date(0, 1, 1, s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Location).Format("15:04"),
		"timezone", s.cfg.Location.String(),
		"credits", s.cfg.Credits,
	)

	s.tick(ctx, s.clock.Now())

	for {
		s.mu.Lock()
		draining := s.draining
		s.mu.Unlock()

		if draining {
			s.logger.Info("reset scheduler draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			s.mu.Lock()
			draining = s.draining
			s.mu.Unlock()
			if draining {
				return nil
			}
			s.logger.Info("reset scheduler stopping")
			return ctx.Err()
		case <-s.clock.After(s.cfg.CheckInterval):
			s.tick(ctx, s.clock.Now())
		}
	}
}

// Shutdown cancels any in-flight reset and waits for the loop to exit. A
// cancelled ResetAll is a single statement, so it either applied or rolled
// back. It implements server.ShutdownFunc.
func (s *ResetScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.draining = true
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	s.logger.Info("reset scheduler shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			s.logger.Info("reset scheduler shutdown complete")
			return nil
		case <-ctx.Done():
			s.logger.Warn("reset scheduler shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// tick fires the reset when a trigger time lies in (lastCheck, now]. The first
// call only records the time, so starting after today's trigger does not fire.
func (s *ResetScheduler) tick(ctx context.Context, now time.Time) {
	now = now.In(s.cfg.Location)
	prev := s.lastCheck
	s.lastCheck = now

	if prev.IsZero() || !now.After(prev) {
		return
	}

	trigger := s.latestTrigger(now)
	if !trigger.After(prev) {
		return
	}

	day := trigger.Format(dateLayout)
	if s.lastFired == day {
		return
	}
	s.lastFired = day

	s.fire(ctx, day)
}

// latestTrigger returns the most recent trigger time at or before now.
func (s *ResetScheduler) latestTrigger(now time.Time) time.Time {
	trigger := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Location)
	if trigger.After(now) {
		trigger = trigger.AddDate(0, 0, -1)
	}
	return trigger
}

// fire attempts the reset up to MaxAttempts times with jittered backoff.
func (s *ResetScheduler) fire(ctx context.Context, day string) {
	for attempt := 0; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		n, err := s.resetter.ResetAll(attemptCtx, s.cfg.Credits)
		cancel()

		if err == nil {
			s.logger.Info("daily credit reset complete", "date", day, "users", n, "credits", s.cfg.Credits)
			return
		}

		if IsExhausted(attempt+1, s.cfg.MaxAttempts) {
			s.logger.Error("daily credit reset abandoned until next trigger",
				"date", day,
				"attempts", attempt+1,
				"error", err,
			)
			return
		}

		delay := NextRetryDelay(attempt)
		s.logger.Warn("daily credit reset failed, retrying",
			"date", day,
			"attempt", attempt+1,
			"retry_in", delay.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(delay):
		}
	}
}

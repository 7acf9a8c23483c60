package infra

import (
	"log/slog"
	"sync"
	"time"
)

// LimiterState is the call-budget state of the shared quote limiter.
type LimiterState int

const (
	StateIdle    LimiterState = iota // Calls permitted
	StateCalling                     // At least one call in flight
	StateBackoff                     // Cool-down, all calls denied
)

func (s LimiterState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCalling:
		return "CALLING"
	case StateBackoff:
		return "BACKOFF"
	default:
		return "UNKNOWN"
	}
}

// RateLimiter enforces the shared call budget for the quote provider:
// a rolling per-minute cap plus a fixed cool-down entered when the cap
// is exceeded or the provider reports a rate limit. Every instrument's
// polling shares this one limiter. Thread-safe.
type RateLimiter struct {
	mu sync.Mutex

	maxCallsPerWindow int
	window            time.Duration
	cooldown          time.Duration

	callsThisWindow int
	windowResetAt   time.Time
	backoffUntil    time.Time
	inFlight        int

	now func() time.Time // injectable clock for tests
}

// RateLimiterConfig holds limiter construction parameters.
type RateLimiterConfig struct {
	MaxCallsPerWindow int
	Window            time.Duration
	Cooldown          time.Duration
}

// DefaultRateLimiterConfig returns the provider defaults: 60 calls per
// rolling minute, 60s cool-down.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxCallsPerWindow: 60,
		Window:            time.Minute,
		Cooldown:          time.Minute,
	}
}

// NewRateLimiter creates a limiter. Zero config values fall back to the
// defaults.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if cfg.MaxCallsPerWindow <= 0 {
		cfg.MaxCallsPerWindow = def.MaxCallsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &RateLimiter{
		maxCallsPerWindow: cfg.MaxCallsPerWindow,
		window:            cfg.Window,
		cooldown:          cfg.Cooldown,
		now:               time.Now,
	}
}

// Allow attempts to reserve one call. Denied calls are skipped, not
// queued: callers fall back to the simulation branch for this tick.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if now.Before(r.backoffUntil) {
		return false
	}

	if now.After(r.windowResetAt) {
		r.callsThisWindow = 0
		r.windowResetAt = now.Add(r.window)
	}

	if r.callsThisWindow >= r.maxCallsPerWindow {
		r.enterBackoff(now, "window cap exceeded")
		return false
	}

	r.callsThisWindow++
	r.inFlight++
	return true
}

// Done releases a reservation made by Allow, successful or not.
func (r *RateLimiter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight > 0 {
		r.inFlight--
	}
}

// ReportRateLimited forces the cool-down after the provider itself
// rejected a call with a rate-limit failure.
func (r *RateLimiter) ReportRateLimited() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enterBackoff(r.now(), "provider rate limit")
}

// State returns the limiter state. Backoff expires lazily on read.
func (r *RateLimiter) State() LimiterState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.now().Before(r.backoffUntil) {
		return StateBackoff
	}
	if r.inFlight > 0 {
		return StateCalling
	}
	return StateIdle
}

// InBackoff reports whether the cool-down is active.
func (r *RateLimiter) InBackoff() bool {
	return r.State() == StateBackoff
}

// enterBackoff must be called with the mutex held.
func (r *RateLimiter) enterBackoff(now time.Time, reason string) {
	if now.Before(r.backoffUntil) {
		return // already cooling down
	}
	r.backoffUntil = now.Add(r.cooldown)
	r.callsThisWindow = 0
	r.windowResetAt = now.Add(r.window)
	slog.Warn("Rate limiter entering backoff",
		slog.String("reason", reason),
		slog.Time("until", r.backoffUntil))
}

package infra

import (
	"testing"
	"time"
)

func TestRateLimiter_WindowCap(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		MaxCallsPerWindow: 3,
		Window:            time.Minute,
		Cooldown:          time.Minute,
	})
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("call %d: expected Allow within cap", i+1)
		}
		rl.Done()
	}

	// Fourth call breaches the cap and triggers the cool-down
	if rl.Allow() {
		t.Error("expected Allow to deny over cap")
	}
	if rl.State() != StateBackoff {
		t.Errorf("expected BACKOFF, got %v", rl.State())
	}

	// Still denied mid cool-down
	now = now.Add(30 * time.Second)
	if rl.Allow() {
		t.Error("expected denial during cool-down")
	}

	// Cool-down elapsed: back to Idle, calls permitted again
	now = now.Add(31 * time.Second)
	if rl.State() != StateIdle {
		t.Errorf("expected IDLE after cool-down, got %v", rl.State())
	}
	if !rl.Allow() {
		t.Error("expected Allow after cool-down")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		MaxCallsPerWindow: 2,
		Window:            time.Minute,
		Cooldown:          time.Minute,
	})
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow()
	rl.Done()
	rl.Allow()
	rl.Done()

	// New window: counter resets without entering backoff
	now = now.Add(61 * time.Second)
	if !rl.Allow() {
		t.Error("expected Allow in a fresh window")
	}
	if rl.InBackoff() {
		t.Error("fresh window must not be in backoff")
	}
}

func TestRateLimiter_ReportRateLimited(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow() {
		t.Fatal("expected first Allow to succeed")
	}
	rl.Done()

	rl.ReportRateLimited()

	if !rl.InBackoff() {
		t.Error("expected backoff after provider rate limit")
	}
	if rl.Allow() {
		t.Error("expected denial during provider-forced backoff")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow() {
		t.Error("expected Allow after forced backoff expired")
	}
}

func TestRateLimiter_CallingState(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())

	if rl.State() != StateIdle {
		t.Errorf("expected IDLE initially, got %v", rl.State())
	}

	rl.Allow()
	if rl.State() != StateCalling {
		t.Errorf("expected CALLING with a reservation held, got %v", rl.State())
	}

	rl.Done()
	if rl.State() != StateIdle {
		t.Errorf("expected IDLE after Done, got %v", rl.State())
	}
}

func TestReconnectPolicy(t *testing.T) {
	p := NewReconnectPolicy()

	if d := p.NextDelay(); d != 1*time.Second {
		t.Errorf("attempt 0: expected 1s, got %v", d)
	}
	if d := p.NextDelay(); d != 2*time.Second {
		t.Errorf("attempt 1: expected 2s, got %v", d)
	}
	if d := p.NextDelay(); d != 4*time.Second {
		t.Errorf("attempt 2: expected 4s, got %v", d)
	}

	// Delay saturates at the max
	for i := 0; i < 20; i++ {
		p.NextDelay()
	}
	if d := p.NextDelay(); d != 60*time.Second {
		t.Errorf("expected saturation at 60s, got %v", d)
	}

	// Success resets to the initial delay
	p.Reset()
	if d := p.NextDelay(); d != 1*time.Second {
		t.Errorf("after reset: expected 1s, got %v", d)
	}
}

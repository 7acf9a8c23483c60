package infra

import (
	"math"
	"time"
)

const (
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 60 * time.Second
	reconnectMultiplier   = 2.0
)

// ReconnectPolicy computes exponential reconnect delays for persistent
// sources (the streaming quote worker). Attempts are uncapped; the
// delay saturates at the maximum and resets on any successful call.
// Not safe for concurrent use; each worker owns one policy.
type ReconnectPolicy struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	attempt      int
}

// NewReconnectPolicy creates a policy with the standard delays.
func NewReconnectPolicy() *ReconnectPolicy {
	return &ReconnectPolicy{
		initialDelay: reconnectInitialDelay,
		maxDelay:     reconnectMaxDelay,
		multiplier:   reconnectMultiplier,
	}
}

// NextDelay returns the delay before the next attempt and advances the
// attempt counter.
func (p *ReconnectPolicy) NextDelay() time.Duration {
	d := float64(p.initialDelay) * math.Pow(p.multiplier, float64(p.attempt))
	p.attempt++

	if d > float64(p.maxDelay) || d < 0 { // overflow guard
		return p.maxDelay
	}
	return time.Duration(d)
}

// Reset restores the initial delay after a successful call.
func (p *ReconnectPolicy) Reset() {
	p.attempt = 0
}

// Attempt returns the number of delays handed out since the last reset.
func (p *ReconnectPolicy) Attempt() int {
	return p.attempt
}

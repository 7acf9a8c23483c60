package engine

import (
	"strings"
	"time"

	"tickerwall/internal/domain"
	"tickerwall/internal/quote"
)

// StatusCache holds the last known session status per exchange with a
// freshness deadline. Owned by the engine loop; not thread-safe.
type StatusCache struct {
	entries map[string]statusEntry
	ttl     time.Duration
}

type statusEntry struct {
	status    quote.MarketStatus
	fetchedAt time.Time
}

// NewStatusCache creates a cache whose entries stay fresh for ttl.
func NewStatusCache(ttl time.Duration) *StatusCache {
	return &StatusCache{
		entries: make(map[string]statusEntry),
		ttl:     ttl,
	}
}

// Put stores a refreshed status.
func (c *StatusCache) Put(exchange string, st quote.MarketStatus, now time.Time) {
	c.entries[exchange] = statusEntry{status: st, fetchedAt: now}
}

// Fresh returns the cached status and whether it is still fresh.
// A missing entry is reported as not fresh.
func (c *StatusCache) Fresh(exchange string, now time.Time) (quote.MarketStatus, bool) {
	e, ok := c.entries[exchange]
	if !ok {
		return quote.MarketStatus{}, false
	}
	return e.status, now.Sub(e.fetchedAt) <= c.ttl
}

// ResolveSession maps engine and feed state to the per-tile session
/// status. Rules apply in priority order:
//
//  1. Simulation mode is always Open.
//  2. Limiter cool-down or an in-flight fetch means Standby.
//  3. An instrument that could not be sourced live is Closed.
//  4. Otherwise the cached exchange status decides; a missing or
//     stale cache entry defaults to Closed.
func ResolveSession(mode domain.Mode, limiterBackoff, fetchInFlight, isLive bool, st quote.MarketStatus, fresh bool) domain.SessionStatus {
	if mode == domain.ModeSimulation {
		return domain.SessionOpen
	}
	if limiterBackoff || fetchInFlight {
		return domain.SessionStandby
	}
	if !isLive {
		return domain.SessionClosed
	}
	if !fresh {
		return domain.SessionClosed
	}
	if st.IsOpen {
		return domain.SessionOpen
	}
	session := strings.ToLower(st.Session)
	switch {
	case strings.Contains(session, "pre"):
		return domain.SessionPre
	case strings.Contains(session, "post"):
		return domain.SessionPost
	default:
		return domain.SessionClosed
	}
}

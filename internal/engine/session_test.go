package engine

import (
	"testing"
	"time"

	"tickerwall/internal/domain"
	"tickerwall/internal/quote"
)

func TestResolveSession(t *testing.T) {
	open := quote.MarketStatus{IsOpen: true, Session: "regular"}
	pre := quote.MarketStatus{Session: "premarket"}
	post := quote.MarketStatus{Session: "postmarket"}
	closed := quote.MarketStatus{Session: "closed"}

	tests := []struct {
		name    string
		mode    domain.Mode
		backoff bool
		pending bool
		isLive  bool
		status  quote.MarketStatus
		fresh   bool
		want    domain.SessionStatus
	}{
		{"simulation always open", domain.ModeSimulation, true, true, false, closed, false, domain.SessionOpen},
		{"backoff wins over open market", domain.ModeLive, true, false, true, open, true, domain.SessionStandby},
		{"in-flight fetch is standby", domain.ModeLive, false, true, true, open, true, domain.SessionStandby},
		{"demoted instrument is closed", domain.ModeLive, false, false, false, open, true, domain.SessionClosed},
		{"stale cache defaults closed", domain.ModeLive, false, false, true, open, false, domain.SessionClosed},
		{"open market", domain.ModeLive, false, false, true, open, true, domain.SessionOpen},
		{"pre-market", domain.ModeLive, false, false, true, pre, true, domain.SessionPre},
		{"post-market", domain.ModeLive, false, false, true, post, true, domain.SessionPost},
		{"closed market", domain.ModeLive, false, false, true, closed, true, domain.SessionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSession(tt.mode, tt.backoff, tt.pending, tt.isLive, tt.status, tt.fresh)
			if got != tt.want {
				t.Errorf("ResolveSession() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusCache(t *testing.T) {
	c := NewStatusCache(time.Minute)
	base := time.Unix(1000, 0)

	if _, fresh := c.Fresh("NASDAQ", base); fresh {
		t.Error("Empty cache should not report fresh")
	}

	c.Put("NASDAQ", quote.MarketStatus{Exchange: "NASDAQ", IsOpen: true}, base)

	st, fresh := c.Fresh("NASDAQ", base.Add(30*time.Second))
	if !fresh {
		t.Error("Entry within TTL should be fresh")
	}
	if !st.IsOpen {
		t.Error("Cached status should round-trip")
	}

	if _, fresh := c.Fresh("NASDAQ", base.Add(2*time.Minute)); fresh {
		t.Error("Entry past TTL should be stale")
	}
}

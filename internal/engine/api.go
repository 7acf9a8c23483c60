package engine

import (
	"time"

	"tickerwall/internal/domain"
	"tickerwall/internal/event"
	"tickerwall/internal/quote"
)

// Commands. All of them post to the engine inbox and return
// immediately; the loop applies them in order.

// SetMode switches the price source. Calling with the current mode is
// a no-op, so repeated switches are idempotent.
func (e *Engine) SetMode(m domain.Mode) {
	e.post(event.SetModeEvent{BaseEvent: event.Now(), Mode: m})
}

// SetVolatilityMultiplier adjusts simulated motion, clamped to
// [0, MaxVolatilityMultiplier].
func (e *Engine) SetVolatilityMultiplier(v float64) {
	e.post(event.SetVolatilityEvent{BaseEvent: event.Now(), Multiplier: v})
}

// SetTickInterval adjusts the simulation period, clamped to
// [MinTickInterval, MaxTickInterval].
func (e *Engine) SetTickInterval(d time.Duration) {
	e.post(event.SetTickIntervalEvent{BaseEvent: event.Now(), Interval: d})
}

// ForceScenario applies a market-wide shock to every tile.
func (e *Engine) ForceScenario(s domain.Scenario) {
	e.post(event.ScenarioEvent{BaseEvent: event.Now(), Scenario: s})
}

// RequestHistoryRefresh triggers a one-shot intraday backfill for the
// modal chart. Only meaningful for live instruments.
func (e *Engine) RequestHistoryRefresh(ticker string) {
	e.post(event.HistoryRefreshEvent{BaseEvent: event.Now(), Ticker: ticker})
}

// SetVisible replaces the filter view; nil restores all instruments.
func (e *Engine) SetVisible(tickers []string) {
	e.post(event.SetVisibleEvent{BaseEvent: event.Now(), Tickers: tickers})
}

// SetPaused suspends or resumes all scheduled ticking.
func (e *Engine) SetPaused(paused bool) {
	e.post(event.PauseEvent{BaseEvent: event.Now(), Paused: paused})
}

// SubmitStreamQuote feeds a push-source sample into the loop. Used by
// the streaming worker; ignored outside live mode.
func (e *Engine) SubmitStreamQuote(q quote.Quote) {
	e.post(event.StreamQuoteEvent{
		BaseEvent: event.Now(),
		Seq:       e.reqSeq.Add(1),
		Quote:     q,
	})
}

// Reads. All return copies and never block on the engine loop.

// Snapshot returns the current state of one tile.
func (e *Engine) Snapshot(ticker string) (domain.TileState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tile, ok := e.tiles[ticker]
	if !ok {
		return domain.TileState{}, false
	}
	return *tile, true
}

// Snapshots returns all tiles in catalog order.
func (e *Engine) Snapshots() []domain.TileState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.TileState, 0, len(e.tiles))
	for _, ins := range e.catalog.All() {
		out = append(out, *e.tiles[ins.Ticker])
	}
	return out
}

// History returns the rolling price sequence of one tile, oldest first.
func (e *Engine) History(ticker string) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.history[ticker]
	if !ok {
		return nil
	}
	return h.Values()
}

// AggregateStats returns the last computed statistics over the visible
// tile set.
func (e *Engine) AggregateStats() domain.AggregateStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Mode returns the current sourcing mode.
func (e *Engine) Mode() domain.Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// Package event defines the inbox messages consumed by the engine
// loop. Fetch goroutines, the streaming worker and UI commands all
// talk to the single-threaded engine through these.
package event

import (
	"time"

	"tickerwall/internal/domain"
	"tickerwall/internal/quote"
)

// Type defines the type of event.
type Type uint16

const (
	EvQuoteResult Type = iota + 1
	EvMarketStatus
	EvHistoryResult
	EvStreamQuote
	EvSetMode
	EvSetVolatility
	EvSetTickInterval
	EvScenario
	EvHistoryRefresh
	EvSetVisible
	EvPause
)

// Event is the interface for all engine inbox events.
type Event interface {
	GetType() Type
	GetTs() int64
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	TsUnixMs int64
}

func (e BaseEvent) GetTs() int64 { return e.TsUnixMs }

// Now returns a BaseEvent stamped with the current time.
func Now() BaseEvent {
	return BaseEvent{TsUnixMs: time.Now().UnixMilli()}
}

// QuoteResultEvent carries the outcome of one async quote fetch.
// Generation identifies the polling batch that issued it; Seq orders
// results per instrument for last-writer-wins reconciliation.
type QuoteResultEvent struct {
	BaseEvent
	Generation uint64
	Seq        uint64
	Ticker     string
	Quote      quote.Quote
	Err        error
}

func (e QuoteResultEvent) GetType() Type { return EvQuoteResult }

// MarketStatusEvent carries a refreshed exchange session status.
type MarketStatusEvent struct {
	BaseEvent
	Exchange string
	Status   quote.MarketStatus
	Err      error
}

func (e MarketStatusEvent) GetType() Type { return EvMarketStatus }

// HistoryResultEvent carries a one-shot intraday backfill.
type HistoryResultEvent struct {
	BaseEvent
	Generation uint64
	Ticker     string
	Samples    []quote.Sample
	Err        error
}

func (e HistoryResultEvent) GetType() Type { return EvHistoryResult }

// StreamQuoteEvent is a push-feed sample. Streams are not batched, so
// it carries no generation; ordering still goes through Seq.
type StreamQuoteEvent struct {
	BaseEvent
	Seq   uint64
	Quote quote.Quote
}

func (e StreamQuoteEvent) GetType() Type { return EvStreamQuote }

// SetModeEvent switches between simulation and live sourcing.
type SetModeEvent struct {
	BaseEvent
	Mode domain.Mode
}

func (e SetModeEvent) GetType() Type { return EvSetMode }

// SetVolatilityEvent adjusts the simulation volatility multiplier.
type SetVolatilityEvent struct {
	BaseEvent
	Multiplier float64
}

func (e SetVolatilityEvent) GetType() Type { return EvSetVolatility }

// SetTickIntervalEvent adjusts the simulation tick period.
type SetTickIntervalEvent struct {
	BaseEvent
	Interval time.Duration
}

func (e SetTickIntervalEvent) GetType() Type { return EvSetTickInterval }

// ScenarioEvent forces a market-wide shock.
type ScenarioEvent struct {
	BaseEvent
	Scenario domain.Scenario
}

func (e ScenarioEvent) GetType() Type { return EvScenario }

// HistoryRefreshEvent requests a one-shot history backfill for the
// modal chart view of one live instrument.
type HistoryRefreshEvent struct {
	BaseEvent
	Ticker string
}

func (e HistoryRefreshEvent) GetType() Type { return EvHistoryRefresh }

// SetVisibleEvent replaces the filter view. Nil means all instruments;
// aggregate statistics run over the visible set only.
type SetVisibleEvent struct {
	BaseEvent
	Tickers []string
}

func (e SetVisibleEvent) GetType() Type { return EvSetVisible }

// PauseEvent suspends or resumes all scheduled ticking.
type PauseEvent struct {
	BaseEvent
	Paused bool
}

func (e PauseEvent) GetType() Type { return EvPause }

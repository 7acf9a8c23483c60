package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickerwall/internal/domain"
	"tickerwall/internal/event"
	"tickerwall/internal/quote"
	"tickerwall/internal/sim"
)

// fakeSource is an in-memory QuoteSource for loop tests.
type fakeSource struct {
	quotes    map[string]quote.Quote
	err       error
	status    quote.MarketStatus
	statusErr error
	history   []quote.Sample
	histErr   error
}

func (f *fakeSource) FetchQuote(_ context.Context, ticker string) (quote.Quote, error) {
	if f.err != nil {
		return quote.Quote{}, f.err
	}
	q, ok := f.quotes[ticker]
	if !ok {
		return quote.Quote{}, quote.ErrMalformed
	}
	return q, nil
}

func (f *fakeSource) FetchMarketStatus(_ context.Context, exchange string) (quote.MarketStatus, error) {
	if f.statusErr != nil {
		return quote.MarketStatus{}, f.statusErr
	}
	st := f.status
	st.Exchange = exchange
	return st, nil
}

func (f *fakeSource) FetchHistory(_ context.Context, _ string, _ time.Duration) ([]quote.Sample, error) {
	return f.history, f.histErr
}

func testCatalog() *domain.Catalog {
	return domain.NewCatalog([]domain.Instrument{
		{Ticker: "AAPL", Name: "Apple", Sector: "Tech", Exchange: "NASDAQ", InitialPrice: 100},
		{Ticker: "JPM", Name: "JPMorgan", Sector: "Financial", Exchange: "NYSE", InitialPrice: 200},
	})
}

func newTestEngine(t *testing.T, src quote.Source, mode domain.Mode) *Engine {
	t.Helper()
	if src == nil {
		src = &fakeSource{quotes: map[string]quote.Quote{}}
	}
	e := New(Options{
		Catalog:              testCatalog(),
		Source:               src,
		Generator:            sim.NewGenerator(sim.NewNoise(42)),
		Mode:                 mode,
		TickInterval:         time.Second,
		VolatilityMultiplier: 2.5,
		HistoryCapacity:      5,
	})
	e.now = func() time.Time { return time.Unix(10_000, 0) }
	e.scenRand = func() float64 { return 0.5 }
	return e
}

// drain processes inbox events until it stays empty for a short grace
// period, covering results posted from fetch goroutines.
func drain(e *Engine) {
	for {
		select {
		case ev := <-e.inbox:
			e.processEvent(context.Background(), ev)
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}

func TestEngine_SimTickInvariant(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)

	for i := 0; i < 200; i++ {
		e.now = func() time.Time { return time.Unix(10_000+int64(i), 0) }
		e.simTick()

		for _, tile := range e.Snapshots() {
			want := tile.BasePrice * (1 + tile.ChangePct/100)
			assert.InDelta(t, want, tile.Price, 1e-9,
				"price must derive from base and changePct")
			assert.GreaterOrEqual(t, tile.ChangePct, -10.0)
			assert.LessOrEqual(t, tile.ChangePct, 10.0)
			assert.Equal(t, domain.SessionOpen, tile.SessionStatus,
				"simulation mode is always Open")
		}
	}
}

func TestEngine_HistoryBounded(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)

	for i := 0; i < 20; i++ {
		e.simTick()
	}

	h := e.History("AAPL")
	require.Len(t, h, 5, "history must cap at capacity")
}

func TestEngine_QuoteResult_DerivesPercent(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeLive)

	e.generation = 3
	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: 3,
		Seq:        1,
		Ticker:     "AAPL",
		Quote:      quote.Quote{Ticker: "AAPL", CurrentPrice: 105, PriorClose: 100},
	})

	tile, ok := e.Snapshot("AAPL")
	require.True(t, ok)
	assert.Equal(t, 105.0, tile.Price)
	assert.Equal(t, 100.0, tile.BasePrice)
	assert.InDelta(t, 5.0, tile.ChangePct, 1e-9)
	assert.True(t, tile.IsLive)
	assert.Equal(t, domain.ClassStrongGain, tile.Classification)
}

func TestEngine_QuoteResult_SeedsHistoryOnPromotion(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeLive)

	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: e.generation,
		Seq:        1,
		Ticker:     "AAPL",
		Quote:      quote.Quote{Ticker: "AAPL", CurrentPrice: 105, PriorClose: 100},
	})

	// Prior close is sample 0, current price follows
	h := e.History("AAPL")
	require.Equal(t, []float64{100, 105}, h)
}

func TestEngine_StaleGenerationDropped(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeLive)
	e.generation = 7

	before, _ := e.Snapshot("AAPL")
	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: 6, // superseded batch
		Seq:        99,
		Ticker:     "AAPL",
		Quote:      quote.Quote{Ticker: "AAPL", CurrentPrice: 999, PriorClose: 900},
	})

	after, _ := e.Snapshot("AAPL")
	assert.Equal(t, before, after, "stale generation must not mutate state")
}

func TestEngine_OutOfOrderSequenceDropped(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeLive)

	// Newer response arrives first
	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: e.generation, Seq: 2, Ticker: "AAPL",
		Quote: quote.Quote{Ticker: "AAPL", CurrentPrice: 110, PriorClose: 100},
	})
	// The older in-flight response resolves afterwards
	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: e.generation, Seq: 1, Ticker: "AAPL",
		Quote: quote.Quote{Ticker: "AAPL", CurrentPrice: 90, PriorClose: 100},
	})

	tile, _ := e.Snapshot("AAPL")
	assert.Equal(t, 110.0, tile.Price, "older write must never clobber newer state")
}

func TestEngine_FetchFailureDemotesInstrument(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeLive)

	// Promote first
	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: e.generation, Seq: 1, Ticker: "AAPL",
		Quote: quote.Quote{Ticker: "AAPL", CurrentPrice: 105, PriorClose: 100},
	})
	before, _ := e.Snapshot("AAPL")
	require.True(t, before.IsLive)

	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: e.generation, Seq: 2, Ticker: "AAPL",
		Err: errors.New("connection reset"),
	})

	after, _ := e.Snapshot("AAPL")
	assert.False(t, after.IsLive)
	assert.Equal(t, before.Price, after.Price, "failure must leave last-known-good state")
	assert.Equal(t, domain.SessionClosed, after.SessionStatus)
}

func TestEngine_RateLimitedEntersBackoffAndStandby(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeLive)

	// Live instrument, then a provider rate-limit failure
	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: e.generation, Seq: 1, Ticker: "AAPL",
		Quote: quote.Quote{Ticker: "AAPL", CurrentPrice: 105, PriorClose: 100},
	})
	e.handleQuoteResult(event.QuoteResultEvent{
		Generation: e.generation, Seq: 2, Ticker: "AAPL",
		Err: quote.ErrRateLimited,
	})

	assert.True(t, e.limiter.InBackoff(), "provider rate limit must trigger cool-down")
	assert.False(t, e.limiter.Allow(), "calls denied during cool-down")

	tile, _ := e.Snapshot("AAPL")
	assert.Equal(t, domain.SessionStandby, tile.SessionStatus)
}

func TestEngine_ModeSwitchIdempotent(t *testing.T) {
	src := &fakeSource{
		quotes: map[string]quote.Quote{
			"AAPL": {Ticker: "AAPL", CurrentPrice: 105, PriorClose: 100},
			"JPM":  {Ticker: "JPM", CurrentPrice: 190, PriorClose: 200},
		},
		status: quote.MarketStatus{IsOpen: true, Session: "regular"},
	}
	e := newTestEngine(t, src, domain.ModeSimulation)
	ctx := context.Background()

	e.handleSetMode(ctx, domain.ModeLive)
	drain(e)
	once := e.Snapshots()

	// Second switch to the same mode is a no-op
	e.handleSetMode(ctx, domain.ModeLive)
	drain(e)
	twice := e.Snapshots()

	assert.Equal(t, once, twice, "setMode(Live) twice must equal once")
	assert.Equal(t, domain.ModeLive, e.Mode())
}

func TestEngine_ModeSwitchToSimulation(t *testing.T) {
	src := &fakeSource{
		quotes: map[string]quote.Quote{
			"AAPL": {Ticker: "AAPL", CurrentPrice: 105, PriorClose: 100},
			"JPM":  {Ticker: "JPM", CurrentPrice: 190, PriorClose: 200},
		},
		status: quote.MarketStatus{IsOpen: true, Session: "regular"},
	}
	e := newTestEngine(t, src, domain.ModeSimulation)
	ctx := context.Background()

	e.handleSetMode(ctx, domain.ModeLive)
	drain(e)

	e.handleSetMode(ctx, domain.ModeSimulation)

	for _, tile := range e.Snapshots() {
		assert.False(t, tile.IsLive)
		assert.Equal(t, domain.SessionOpen, tile.SessionStatus,
			"simulation reports Open uniformly")
	}
}

func TestEngine_ScenarioReset(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)

	tile := e.tiles["AAPL"]
	tile.BasePrice = 100
	tile.ApplyChangePct(7, 0)
	require.InDelta(t, 107.0, tile.Price, 1e-9)

	e.handleScenario(domain.ScenarioReset)

	got, _ := e.Snapshot("AAPL")
	assert.Equal(t, 0.0, got.ChangePct)
	assert.Equal(t, 100.0, got.Price)
}

func TestEngine_ScenarioCrashAndBull(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)

	e.handleScenario(domain.ScenarioCrash)
	for _, tile := range e.Snapshots() {
		assert.GreaterOrEqual(t, tile.ChangePct, -10.0)
		assert.LessOrEqual(t, tile.ChangePct, -5.0)
	}

	e.handleScenario(domain.ScenarioBullRun)
	for _, tile := range e.Snapshots() {
		assert.GreaterOrEqual(t, tile.ChangePct, 5.0)
		assert.LessOrEqual(t, tile.ChangePct, 10.0)
	}
}

func TestEngine_VisibleFilterDrivesStats(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)

	e.tiles["AAPL"].ApplyChangePct(4, 0)
	e.tiles["JPM"].ApplyChangePct(-2, 0)

	e.handleSetVisible(nil)
	all := e.AggregateStats()
	assert.Equal(t, 1, all.Gaining)
	assert.Equal(t, 1, all.Losing)
	assert.InDelta(t, 1.0, all.MeanChange, 1e-9)

	e.handleSetVisible([]string{"AAPL"})
	filtered := e.AggregateStats()
	assert.Equal(t, 1, filtered.Gaining)
	assert.Equal(t, 0, filtered.Losing)
	assert.InDelta(t, 4.0, filtered.MeanChange, 1e-9)
	// (1-0)/1*50
	assert.InDelta(t, 50.0, filtered.Temperature, 1e-9)
}

func TestEngine_ControlClamps(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)
	ctx := context.Background()

	e.processEvent(ctx, event.SetVolatilityEvent{Multiplier: 99})
	assert.Equal(t, MaxVolatilityMultiplier, e.volMult)

	e.processEvent(ctx, event.SetVolatilityEvent{Multiplier: -1})
	assert.Equal(t, 0.0, e.volMult)

	e.processEvent(ctx, event.SetTickIntervalEvent{Interval: time.Millisecond})
	assert.Equal(t, MinTickInterval, e.tickInterval)

	e.processEvent(ctx, event.SetTickIntervalEvent{Interval: time.Minute})
	assert.Equal(t, MaxTickInterval, e.tickInterval)
}

func TestEngine_HistoryResultReplacesBuffer(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeLive)

	e.handleHistoryResult(event.HistoryResultEvent{
		Generation: e.generation,
		Ticker:     "AAPL",
		Samples: []quote.Sample{
			{TsUnixMs: 1, Price: 101},
			{TsUnixMs: 2, Price: 102},
			{TsUnixMs: 3, Price: 103},
		},
	})

	assert.Equal(t, []float64{101, 102, 103}, e.History("AAPL"))

	// Stale generation backfill is discarded
	e.generation++
	e.handleHistoryResult(event.HistoryResultEvent{
		Generation: e.generation - 1,
		Ticker:     "AAPL",
		Samples:    []quote.Sample{{TsUnixMs: 9, Price: 999}},
	})
	assert.Equal(t, []float64{101, 102, 103}, e.History("AAPL"))
}

func TestEngine_StreamQuoteAppliesInLiveModeOnly(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)

	e.handleStreamQuote(event.StreamQuoteEvent{
		Seq:   1,
		Quote: quote.Quote{Ticker: "AAPL", CurrentPrice: 150, PriorClose: 100},
	})
	tile, _ := e.Snapshot("AAPL")
	assert.Equal(t, 100.0, tile.Price, "stream samples ignored in simulation mode")

	live := newTestEngine(t, nil, domain.ModeLive)
	live.handleStreamQuote(event.StreamQuoteEvent{
		Seq:   1,
		Quote: quote.Quote{Ticker: "AAPL", CurrentPrice: 150, PriorClose: 100},
	})
	tile, _ = live.Snapshot("AAPL")
	assert.Equal(t, 150.0, tile.Price)
	assert.True(t, tile.IsLive)
}

func TestEngine_SnapshotSeed(t *testing.T) {
	e := newTestEngine(t, nil, domain.ModeSimulation)

	// Fresh construction seeds from the catalog's initial prices
	tile, ok := e.Snapshot("JPM")
	require.True(t, ok)
	assert.Equal(t, 200.0, tile.Price)
	assert.Equal(t, 200.0, tile.BasePrice)
	assert.True(t, math.Abs(tile.ChangePct) < 1e-12)
	require.Len(t, e.History("JPM"), 1, "history is non-empty from the first write")
}

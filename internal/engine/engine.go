// Package engine owns per-instrument price state and reconciles it
// from two competing sources: the synthetic random walk and the polled
// live quote feed.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"tickerwall/internal/domain"
	"tickerwall/internal/event"
	"tickerwall/internal/infra"
	"tickerwall/internal/metrics"
	"tickerwall/internal/quote"
	"tickerwall/internal/sim"
	"tickerwall/internal/storage"
	"tickerwall/pkg/ring"
)

const (
	// MinTickInterval / MaxTickInterval bound the simulation period.
	MinTickInterval = 250 * time.Millisecond
	MaxTickInterval = 5 * time.Second

	// MaxVolatilityMultiplier caps the UI volatility control.
	MaxVolatilityMultiplier = 7.5

	// probeEvery is the live-batch cadence at which instruments demoted
	// to simulation get a recovery probe fetch.
	probeEvery = 5

	// historyWindow is the backfill span of the modal chart view.
	historyWindow = 6 * time.Hour

	inboxSize = 1024
)

// Options configures engine construction.
type Options struct {
	Catalog   *domain.Catalog
	Source    quote.Source
	Limiter   *infra.RateLimiter
	Generator *sim.Generator
	Archive   *storage.SampleStore   // optional local sample archive
	Snapshots *storage.SnapshotManager // optional snapshot persistence

	Mode                 domain.Mode
	TickInterval         time.Duration
	VolatilityMultiplier float64
	HistoryCapacity      int
	LiveRefresh          time.Duration
	MarketPing           time.Duration
	SnapshotEvery        time.Duration

	// OnTileChanged receives a state copy after every tile write.
	// Called from the engine goroutine; must not block.
	OnTileChanged func(ticker string, state domain.TileState)
}

// Engine is the single-threaded reconciliation loop. All state writes
// happen on the Run goroutine; fetch goroutines and UI commands talk
// to it through the inbox. External reads take copies under the lock.
type Engine struct {
	inbox chan event.Event

	catalog   *domain.Catalog
	source    quote.Source
	limiter   *infra.RateLimiter
	generator *sim.Generator
	archive   *storage.SampleStore
	snapshots *storage.SnapshotManager
	onTile    func(string, domain.TileState)

	tiles   map[string]*domain.TileState
	history map[string]*ring.Buffer
	stats   domain.AggregateStats
	visible map[string]struct{} // nil means all instruments

	mode         domain.Mode
	paused       bool
	tickInterval time.Duration
	volMult      float64
	liveRefresh  time.Duration
	snapEvery    time.Duration

	generation  uint64 // current polling batch; loop-owned
	batchCount  uint64
	reqSeq      atomic.Uint64 // request ordering; shared with fetchers
	lastApplied map[string]uint64
	inFlight    map[string]int

	statusCache *StatusCache

	mu       sync.RWMutex // guards reads of tiles/history/stats/mode
	now      func() time.Time
	scenRand func() float64 // uniform [0,1) for scenario magnitudes
}

// New creates the engine and seeds TileState for every catalog entry,
// preferring a persisted snapshot when one exists and is fresh.
func New(opts Options) *Engine {
	e := &Engine{
		inbox:        make(chan event.Event, inboxSize),
		catalog:      opts.Catalog,
		source:       opts.Source,
		limiter:      opts.Limiter,
		generator:    opts.Generator,
		archive:      opts.Archive,
		snapshots:    opts.Snapshots,
		onTile:       opts.OnTileChanged,
		tiles:        make(map[string]*domain.TileState),
		history:      make(map[string]*ring.Buffer),
		mode:         opts.Mode,
		tickInterval: clampDuration(opts.TickInterval, MinTickInterval, MaxTickInterval),
		volMult:      clampFloat(opts.VolatilityMultiplier, 0, MaxVolatilityMultiplier),
		liveRefresh:  opts.LiveRefresh,
		snapEvery:    opts.SnapshotEvery,
		lastApplied:  make(map[string]uint64),
		inFlight:     make(map[string]int),
		now:          time.Now,
		scenRand:     rand.Float64,
	}
	if e.limiter == nil {
		e.limiter = infra.NewRateLimiter(infra.DefaultRateLimiterConfig())
	}
	if e.generator == nil {
		e.generator = sim.NewGenerator(nil)
	}
	if e.liveRefresh <= 0 {
		e.liveRefresh = 12 * time.Second
	}
	if e.snapEvery <= 0 {
		e.snapEvery = 30 * time.Second
	}
	ping := opts.MarketPing
	if ping <= 0 {
		ping = time.Minute
	}
	e.statusCache = NewStatusCache(ping)

	capacity := opts.HistoryCapacity
	if capacity <= 0 {
		capacity = 50
	}

	var seed *storage.Snapshot
	if e.snapshots != nil {
		var err error
		seed, err = e.snapshots.Load()
		if err != nil {
			slog.Warn("Snapshot load failed, starting fresh", slog.Any("error", err))
			seed = nil
		}
	}
	seedByTicker := make(map[string]storage.TileSnapshot)
	if seed != nil {
		for _, ts := range seed.Tiles {
			seedByTicker[ts.Ticker] = ts
		}
	}

	initialStatus := domain.SessionClosed
	if e.mode == domain.ModeSimulation {
		initialStatus = domain.SessionOpen
	}

	for _, ins := range e.catalog.All() {
		tile := &domain.TileState{
			Ticker:         ins.Ticker,
			Price:          ins.InitialPrice,
			BasePrice:      ins.InitialPrice,
			Classification: domain.ClassNeutral,
			SessionStatus:  initialStatus,
		}
		if s, ok := seedByTicker[ins.Ticker]; ok && s.Price > 0 && s.BasePrice > 0 {
			tile.Price = s.Price
			tile.BasePrice = s.BasePrice
			tile.ChangePct = s.ChangePct
			tile.Classification = domain.Classify(s.ChangePct)
		}
		e.tiles[ins.Ticker] = tile

		h := ring.New(capacity)
		h.Push(tile.Price)
		e.history[ins.Ticker] = h
	}

	e.stats = e.computeStats()
	return e
}

// Run starts the reconciliation loop. This must run in exactly one
// goroutine; it exits when the context is canceled, saving a final
// snapshot on the way out.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Engine started",
		slog.String("mode", e.Mode().String()),
		slog.Int("instruments", e.catalog.Len()))

	simTicker := time.NewTicker(e.tickInterval)
	defer simTicker.Stop()
	pollTicker := time.NewTicker(e.liveRefresh)
	defer pollTicker.Stop()
	statusTicker := time.NewTicker(e.statusCache.ttl)
	defer statusTicker.Stop()
	snapTicker := time.NewTicker(e.snapEvery)
	defer snapTicker.Stop()

	if e.mode == domain.ModeLive {
		e.refreshMarketStatus(ctx)
		e.liveTick(ctx, true)
	}

	currentInterval := e.tickInterval
	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping")
			e.saveSnapshot()
			return

		case ev := <-e.inbox:
			e.processEvent(ctx, ev)
			if e.tickInterval != currentInterval {
				currentInterval = e.tickInterval
				simTicker.Reset(currentInterval)
			}

		case <-simTicker.C:
			if e.mode == domain.ModeSimulation && !e.paused {
				e.simTick()
			}

		case <-pollTicker.C:
			if e.mode == domain.ModeLive && !e.paused {
				e.liveTick(ctx, false)
			}

		case <-statusTicker.C:
			if e.mode == domain.ModeLive && !e.paused {
				e.refreshMarketStatus(ctx)
			}

		case <-snapTicker.C:
			e.saveSnapshot()
		}
	}
}

func (e *Engine) processEvent(ctx context.Context, ev event.Event) {
	switch t := ev.(type) {
	case event.QuoteResultEvent:
		e.handleQuoteResult(t)
	case event.MarketStatusEvent:
		e.handleMarketStatus(t)
	case event.HistoryResultEvent:
		e.handleHistoryResult(t)
	case event.StreamQuoteEvent:
		e.handleStreamQuote(t)
	case event.SetModeEvent:
		e.handleSetMode(ctx, t.Mode)
	case event.SetVolatilityEvent:
		e.volMult = clampFloat(t.Multiplier, 0, MaxVolatilityMultiplier)
	case event.SetTickIntervalEvent:
		e.tickInterval = clampDuration(t.Interval, MinTickInterval, MaxTickInterval)
	case event.ScenarioEvent:
		e.handleScenario(t.Scenario)
	case event.HistoryRefreshEvent:
		e.handleHistoryRefresh(ctx, t.Ticker)
	case event.SetVisibleEvent:
		e.handleSetVisible(t.Tickers)
	case event.PauseEvent:
		e.paused = t.Paused
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

// simTick advances every instrument through the synthetic generator.
func (e *Engine) simTick() {
	nowMs := e.now().UnixMilli()

	e.mu.Lock()
	for _, ins := range e.catalog.All() {
		idx, _ := e.catalog.Index(ins.Ticker)
		e.simStepLocked(e.tiles[ins.Ticker], idx, nowMs)
	}
	e.stats = e.computeStats()
	e.mu.Unlock()

	metrics.TicksTotal.WithLabelValues("simulation").Inc()
	e.emitAll()
}

// simStepLocked applies one generator step to a tile. Caller holds the
// write lock.
func (e *Engine) simStepLocked(tile *domain.TileState, idx int, nowMs int64) {
	pct := e.generator.Step(tile.ChangePct, idx, nowMs, e.volMult)
	tile.ApplyChangePct(pct, nowMs)
	tile.SessionStatus = e.resolveSessionLocked(tile)
	e.history[tile.Ticker].Push(tile.Price)
	metrics.TileUpdatesTotal.WithLabelValues("simulation").Inc()
}

// liveTick issues one polling batch. Instruments currently sourced
// live get a fetch; demoted ones fall to the simulation branch except
// on probe batches, which retry them. force fetches everything (used
// by the mode switch one-shot).
func (e *Engine) liveTick(ctx context.Context, force bool) {
	e.generation++ // supersede any responses still in flight
	e.batchCount++
	gen := e.generation
	probe := force || e.batchCount%probeEvery == 0
	nowMs := e.now().UnixMilli()

	e.mu.Lock()
	for _, ins := range e.catalog.All() {
		tile := e.tiles[ins.Ticker]
		if (tile.IsLive || probe) && e.limiter.Allow() {
			e.inFlight[ins.Ticker]++
			seq := e.reqSeq.Add(1)
			go e.fetchQuote(ctx, gen, seq, ins.Ticker)
			tile.SessionStatus = e.resolveSessionLocked(tile)
			continue
		}
		// Simulation branch: demoted instrument or limiter denial
		idx, _ := e.catalog.Index(ins.Ticker)
		e.simStepLocked(tile, idx, nowMs)
	}
	e.stats = e.computeStats()
	e.mu.Unlock()

	metrics.TicksTotal.WithLabelValues("live").Inc()
	e.emitAll()
}

// fetchQuote runs off-loop; the result is reconciled on the loop.
func (e *Engine) fetchQuote(ctx context.Context, gen, seq uint64, ticker string) {
	q, err := e.source.FetchQuote(ctx, ticker)
	e.limiter.Done()
	e.post(event.QuoteResultEvent{
		BaseEvent:  event.Now(),
		Generation: gen,
		Seq:        seq,
		Ticker:     ticker,
		Quote:      q,
		Err:        err,
	})
}

func (e *Engine) handleQuoteResult(ev event.QuoteResultEvent) {
	if n := e.inFlight[ev.Ticker]; n > 0 {
		e.inFlight[ev.Ticker] = n - 1
	}

	tile, ok := e.tiles[ev.Ticker]
	if !ok {
		return
	}

	if ev.Generation != e.generation {
		metrics.StaleDropsTotal.Inc()
		slog.Debug("Dropped quote from superseded batch",
			slog.String("ticker", ev.Ticker),
			slog.Uint64("got", ev.Generation),
			slog.Uint64("current", e.generation))
		return
	}

	if ev.Err != nil {
		metrics.QuoteFetchTotal.WithLabelValues("error").Inc()
		if errors.Is(ev.Err, quote.ErrRateLimited) {
			e.limiter.ReportRateLimited()
			metrics.BackoffTotal.Inc()
		}
		slog.Warn("Quote fetch failed, instrument demoted to simulation",
			slog.String("ticker", ev.Ticker),
			slog.Any("error", ev.Err))

		e.mu.Lock()
		tile.IsLive = false
		tile.SessionStatus = e.resolveSessionLocked(tile)
		e.mu.Unlock()
		e.emit(ev.Ticker)
		return
	}

	if ev.Seq <= e.lastApplied[ev.Ticker] {
		// An out-of-order response must never clobber a newer write
		metrics.StaleDropsTotal.Inc()
		return
	}
	e.lastApplied[ev.Ticker] = ev.Seq
	metrics.QuoteFetchTotal.WithLabelValues("ok").Inc()

	e.applyLiveQuote(tile, ev.Quote, ev.GetTs())
}

// applyLiveQuote writes a live sample into the tile and its history.
func (e *Engine) applyLiveQuote(tile *domain.TileState, q quote.Quote, nowMs int64) {
	e.mu.Lock()
	wasLive := tile.IsLive
	tile.ApplyQuote(q.CurrentPrice, q.PriorClose, q.PercentChange, nowMs)
	tile.IsLive = true

	h := e.history[tile.Ticker]
	if !wasLive {
		// Fresh live base: restart the trend from the prior close
		h.Reset(tile.BasePrice)
	}
	h.Push(tile.Price)

	tile.SessionStatus = e.resolveSessionLocked(tile)
	e.stats = e.computeStats()
	e.mu.Unlock()

	if e.archive != nil {
		if err := e.archive.Append(context.Background(), tile.Ticker, nowMs, q.CurrentPrice); err != nil {
			slog.Debug("Sample archive write failed", slog.Any("error", err))
		}
	}

	metrics.TileUpdatesTotal.WithLabelValues("live").Inc()
	e.emit(tile.Ticker)
}

func (e *Engine) handleStreamQuote(ev event.StreamQuoteEvent) {
	if e.mode != domain.ModeLive {
		return
	}
	tile, ok := e.tiles[ev.Quote.Ticker]
	if !ok {
		return
	}
	if ev.Seq <= e.lastApplied[ev.Quote.Ticker] {
		metrics.StaleDropsTotal.Inc()
		return
	}
	e.lastApplied[ev.Quote.Ticker] = ev.Seq
	e.applyLiveQuote(tile, ev.Quote, ev.GetTs())
}

// refreshMarketStatus re-polls session state for every exchange in use.
func (e *Engine) refreshMarketStatus(ctx context.Context) {
	for _, ex := range e.catalog.Exchanges() {
		if !e.limiter.Allow() {
			slog.Debug("Market status refresh skipped by limiter", slog.String("exchange", ex))
			continue
		}
		go func(exchange string) {
			st, err := e.source.FetchMarketStatus(ctx, exchange)
			e.limiter.Done()
			e.post(event.MarketStatusEvent{
				BaseEvent: event.Now(),
				Exchange:  exchange,
				Status:    st,
				Err:       err,
			})
		}(ex)
	}
}

func (e *Engine) handleMarketStatus(ev event.MarketStatusEvent) {
	if ev.Err != nil {
		// Keep the old entry; staleness makes the resolver fall back
		// to Closed rather than surfacing the error
		slog.Warn("Market status refresh failed",
			slog.String("exchange", ev.Exchange),
			slog.Any("error", ev.Err))
		return
	}
	e.statusCache.Put(ev.Exchange, ev.Status, e.now())
}

func (e *Engine) handleSetMode(ctx context.Context, m domain.Mode) {
	if m == e.mode {
		slog.Debug("Mode unchanged", slog.String("mode", m.String()))
		return
	}

	e.mu.Lock()
	e.mode = m
	e.mu.Unlock()
	e.generation++ // orphan in-flight responses from the old mode
	slog.Info("Mode switched", slog.String("mode", m.String()))

	if m == domain.ModeLive {
		e.refreshMarketStatus(ctx)
		e.liveTick(ctx, true)
		return
	}

	// Entering simulation: everything is synthetic and uniformly Open
	e.mu.Lock()
	for _, tile := range e.tiles {
		tile.IsLive = false
		tile.SessionStatus = e.resolveSessionLocked(tile)
	}
	e.stats = e.computeStats()
	e.mu.Unlock()
	e.emitAll()
}

func (e *Engine) handleScenario(s domain.Scenario) {
	nowMs := e.now().UnixMilli()

	e.mu.Lock()
	for _, ins := range e.catalog.All() {
		tile := e.tiles[ins.Ticker]
		var pct float64
		switch s {
		case domain.ScenarioCrash:
			pct = -5 - e.scenRand()*5 // [-10, -5]
		case domain.ScenarioBullRun:
			pct = 5 + e.scenRand()*5 // [+5, +10]
		default:
			pct = 0 // reset: price returns to base exactly
		}
		tile.ApplyChangePct(pct, nowMs)
		tile.SessionStatus = e.resolveSessionLocked(tile)
		e.history[ins.Ticker].Push(tile.Price)
	}
	e.stats = e.computeStats()
	e.mu.Unlock()

	slog.Info("Scenario forced", slog.String("scenario", s.String()))
	e.emitAll()
}

func (e *Engine) handleHistoryRefresh(ctx context.Context, ticker string) {
	tile, ok := e.tiles[ticker]
	if !ok || !tile.IsLive {
		slog.Debug("History refresh skipped for non-live instrument", slog.String("ticker", ticker))
		return
	}
	if !e.limiter.Allow() {
		slog.Debug("History refresh denied by limiter", slog.String("ticker", ticker))
		return
	}

	gen := e.generation
	go func() {
		samples, err := e.source.FetchHistory(ctx, ticker, historyWindow)
		e.limiter.Done()
		if err != nil && e.archive != nil {
			// Provider backfill failed: serve what we archived locally
			samples, err = e.archive.History(ctx, ticker, e.now().Add(-historyWindow))
		}
		e.post(event.HistoryResultEvent{
			BaseEvent:  event.Now(),
			Generation: gen,
			Ticker:     ticker,
			Samples:    samples,
			Err:        err,
		})
	}()
}

func (e *Engine) handleHistoryResult(ev event.HistoryResultEvent) {
	if ev.Generation != e.generation {
		metrics.StaleDropsTotal.Inc()
		return
	}
	if ev.Err != nil || len(ev.Samples) == 0 {
		slog.Warn("History backfill failed",
			slog.String("ticker", ev.Ticker),
			slog.Any("error", ev.Err))
		return
	}

	prices := make([]float64, 0, len(ev.Samples))
	for _, s := range ev.Samples {
		prices = append(prices, s.Price)
	}

	e.mu.Lock()
	if h, ok := e.history[ev.Ticker]; ok {
		h.Fill(prices)
	}
	e.mu.Unlock()
	e.emit(ev.Ticker)
}

func (e *Engine) handleSetVisible(tickers []string) {
	if tickers == nil {
		e.visible = nil
	} else {
		e.visible = make(map[string]struct{}, len(tickers))
		for _, t := range tickers {
			e.visible[t] = struct{}{}
		}
	}

	e.mu.Lock()
	e.stats = e.computeStats()
	e.mu.Unlock()
}

// resolveSessionLocked recomputes the session status of one tile.
// Caller holds the write lock (inFlight and statusCache are loop-owned
// but mode is shared).
func (e *Engine) resolveSessionLocked(tile *domain.TileState) domain.SessionStatus {
	ins, _ := e.catalog.Get(tile.Ticker)
	st, fresh := e.statusCache.Fresh(ins.Exchange, e.now())
	return ResolveSession(
		e.mode,
		e.limiter.InBackoff(),
		e.inFlight[tile.Ticker] > 0,
		tile.IsLive,
		st,
		fresh,
	)
}

// computeStats aggregates over the visible tile set. Caller holds the
// lock.
func (e *Engine) computeStats() domain.AggregateStats {
	visible := make([]domain.TileState, 0, len(e.tiles))
	for _, ins := range e.catalog.All() {
		if e.visible != nil {
			if _, ok := e.visible[ins.Ticker]; !ok {
				continue
			}
		}
		visible = append(visible, *e.tiles[ins.Ticker])
	}
	return domain.ComputeStats(visible)
}

func (e *Engine) saveSnapshot() {
	if e.snapshots == nil {
		return
	}

	e.mu.RLock()
	tiles := make([]storage.TileSnapshot, 0, len(e.tiles))
	for _, ins := range e.catalog.All() {
		t := e.tiles[ins.Ticker]
		tiles = append(tiles, storage.TileSnapshot{
			Ticker:    t.Ticker,
			Price:     t.Price,
			BasePrice: t.BasePrice,
			ChangePct: t.ChangePct,
		})
	}
	e.mu.RUnlock()

	if err := e.snapshots.Save(tiles); err != nil {
		// Persistence is best-effort only
		slog.Warn("Snapshot save failed", slog.Any("error", err))
	}

	if e.archive != nil {
		if err := e.archive.Prune(context.Background(), e.now().Add(-2*historyWindow)); err != nil {
			slog.Debug("Sample archive prune failed", slog.Any("error", err))
		}
	}
}

// emit pushes a tile copy to the consumer callback.
func (e *Engine) emit(ticker string) {
	if e.onTile == nil {
		return
	}
	e.mu.RLock()
	state := *e.tiles[ticker]
	e.mu.RUnlock()
	e.onTile(ticker, state)
}

func (e *Engine) emitAll() {
	if e.onTile == nil {
		return
	}
	for _, ins := range e.catalog.All() {
		e.emit(ins.Ticker)
	}
}

// post delivers an event without ever blocking the caller. A full
// inbox drops the event; schedulers resend state on the next tick.
func (e *Engine) post(ev event.Event) {
	select {
	case e.inbox <- ev:
	default:
		slog.Warn("Engine inbox full, dropping event", slog.Any("type", ev.GetType()))
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

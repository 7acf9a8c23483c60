package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickerwall_ticks_total", Help: "Engine ticks processed per mode"},
		[]string{"mode"},
	)
	QuoteFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickerwall_quote_fetch_total", Help: "Live quote fetch outcomes"},
		[]string{"result"},
	)
	StaleDropsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tickerwall_stale_drops_total", Help: "Quote results dropped for stale generation or sequence"},
	)
	BackoffTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tickerwall_backoff_total", Help: "Rate limiter cool-down entries"},
	)
	TileUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tickerwall_tile_updates_total", Help: "Tile state writes per source"},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, QuoteFetchTotal, StaleDropsTotal, BackoffTotal, TileUpdatesTotal)
}

// Serve exposes /metrics on the given address.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

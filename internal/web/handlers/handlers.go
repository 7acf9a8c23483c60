// Package handlers implements the HTTP control surface of the wall.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"tickerwall/internal/domain"
)

// Wall is the engine surface the HTTP layer drives.
type Wall interface {
	Snapshot(ticker string) (domain.TileState, bool)
	Snapshots() []domain.TileState
	History(ticker string) []float64
	AggregateStats() domain.AggregateStats
	Mode() domain.Mode

	SetMode(m domain.Mode)
	ForceScenario(s domain.Scenario)
	SetVolatilityMultiplier(v float64)
	SetTickInterval(d time.Duration)
	RequestHistoryRefresh(ticker string)
	SetVisible(tickers []string)
	SetPaused(paused bool)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Response encode failed", slog.Any("error", err))
	}
}

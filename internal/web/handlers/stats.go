package handlers

import (
	"log/slog"
	"net/http"
)

// StatsHandler serves the aggregate gain/loss statistics of the
// visible grid.
type StatsHandler struct {
	wall   Wall
	logger *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(wall Wall, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{wall: wall, logger: logger}
}

// Handle serves GET /stats.
func (h *StatsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.wall.AggregateStats())
}

package handlers

import (
	"log/slog"
	"net/http"
	"strings"
)

// PricesHandler serves current tile state and rolling price history.
type PricesHandler struct {
	wall   Wall
	logger *slog.Logger
}

// NewPricesHandler creates a new prices handler
func NewPricesHandler(wall Wall, logger *slog.Logger) *PricesHandler {
	return &PricesHandler{wall: wall, logger: logger}
}

// Handle serves GET /prices and GET /prices/{ticker}.
func (h *PricesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ticker := strings.Trim(strings.TrimPrefix(r.URL.Path, "/prices"), "/")
	if ticker == "" {
		writeJSON(w, http.StatusOK, h.wall.Snapshots())
		return
	}

	tile, ok := h.wall.Snapshot(strings.ToUpper(ticker))
	if !ok {
		http.Error(w, "Unknown ticker", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tile)
}

// HandleHistory serves GET /history/{ticker}.
func (h *PricesHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ticker := strings.ToUpper(strings.Trim(strings.TrimPrefix(r.URL.Path, "/history"), "/"))
	if ticker == "" {
		http.Error(w, "Ticker required", http.StatusBadRequest)
		return
	}
	if _, ok := h.wall.Snapshot(ticker); !ok {
		http.Error(w, "Unknown ticker", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticker":  ticker,
		"samples": h.wall.History(ticker),
	})
}

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tickerwall/internal/domain"
)

// ControlsHandler applies grid control changes: scenarios, simulation
// tuning, visibility and history refresh triggers.
type ControlsHandler struct {
	wall   Wall
	logger *slog.Logger
}

// NewControlsHandler creates a new controls handler
func NewControlsHandler(wall Wall, logger *slog.Logger) *ControlsHandler {
	return &ControlsHandler{wall: wall, logger: logger}
}

// controlsRequest carries optional tuning fields; absent fields are
// left unchanged.
type controlsRequest struct {
	TickIntervalMS       *int64   `json:"tick_interval_ms"`
	VolatilityMultiplier *float64 `json:"volatility_multiplier"`
	Paused               *bool    `json:"paused"`
	Visible              []string `json:"visible"`
}

// Handle serves POST /controls.
func (h *ControlsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req controlsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.TickIntervalMS != nil {
		h.wall.SetTickInterval(time.Duration(*req.TickIntervalMS) * time.Millisecond)
	}
	if req.VolatilityMultiplier != nil {
		h.wall.SetVolatilityMultiplier(*req.VolatilityMultiplier)
	}
	if req.Paused != nil {
		h.wall.SetPaused(*req.Paused)
	}
	if req.Visible != nil {
		tickers := make([]string, 0, len(req.Visible))
		for _, t := range req.Visible {
			tickers = append(tickers, strings.ToUpper(t))
		}
		h.wall.SetVisible(tickers)
	}

	h.logger.Info("Controls updated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleScenario serves POST /scenario/{crash|bull|reset}.
func (h *ControlsHandler) HandleScenario(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/scenario"), "/")
	var scenario domain.Scenario
	switch strings.ToLower(name) {
	case "crash":
		scenario = domain.ScenarioCrash
	case "bull", "bullrun", "bull-run":
		scenario = domain.ScenarioBullRun
	case "reset":
		scenario = domain.ScenarioReset
	default:
		http.Error(w, "Invalid scenario. Use 'crash', 'bull' or 'reset'.", http.StatusBadRequest)
		return
	}

	h.wall.ForceScenario(scenario)
	h.logger.Info("Scenario requested", "scenario", scenario.String())
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"scenario": scenario.String(),
	})
}

// HandleRefresh serves POST /refresh/{ticker}, triggering a history
// backfill for one instrument.
func (h *ControlsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ticker := strings.ToUpper(strings.Trim(strings.TrimPrefix(r.URL.Path, "/refresh"), "/"))
	if ticker == "" {
		http.Error(w, "Ticker required", http.StatusBadRequest)
		return
	}
	if _, ok := h.wall.Snapshot(ticker); !ok {
		http.Error(w, "Unknown ticker", http.StatusNotFound)
		return
	}

	h.wall.RequestHistoryRefresh(ticker)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"ticker": ticker,
	})
}

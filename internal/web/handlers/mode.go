package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"tickerwall/internal/domain"
)

// ModeHandler handles data-source mode switching requests.
type ModeHandler struct {
	wall   Wall
	logger *slog.Logger
}

// NewModeHandler creates a new mode handler
func NewModeHandler(wall Wall, logger *slog.Logger) *ModeHandler {
	return &ModeHandler{wall: wall, logger: logger}
}

// Handle serves POST /mode/{simulation|live} and GET /mode.
func (h *ModeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"mode": h.wall.Mode().String()})
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/mode"), "/")
	var mode domain.Mode
	switch strings.ToLower(name) {
	case "live":
		mode = domain.ModeLive
	case "simulation", "sim":
		mode = domain.ModeSimulation
	default:
		h.logger.Warn("Invalid mode requested", "mode", name)
		http.Error(w, "Invalid mode. Use 'simulation' or 'live'.", http.StatusBadRequest)
		return
	}

	h.wall.SetMode(mode)
	h.logger.Info("Mode switch requested", "mode", mode.String())
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"mode":   mode.String(),
	})
}

package handlers

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	logger  *slog.Logger
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger, started: time.Now()}
}

// Handle serves GET /health.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

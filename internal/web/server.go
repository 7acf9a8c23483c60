// Package web exposes the read and control HTTP API of the wall.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tickerwall/internal/web/handlers"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	wall   handlers.Wall
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(addr string, wall handlers.Wall, logger *slog.Logger) *Server {
	return &Server{addr: addr, wall: wall, logger: logger}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	pricesHandler := handlers.NewPricesHandler(s.wall, s.logger)
	modeHandler := handlers.NewModeHandler(s.wall, s.logger)
	controlsHandler := handlers.NewControlsHandler(s.wall, s.logger)
	statsHandler := handlers.NewStatsHandler(s.wall, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)

	mux.HandleFunc("/prices", pricesHandler.Handle)
	mux.HandleFunc("/prices/", pricesHandler.Handle)
	mux.HandleFunc("/history/", pricesHandler.HandleHistory)
	mux.HandleFunc("/mode", modeHandler.Handle)
	mux.HandleFunc("/mode/", modeHandler.Handle)
	mux.HandleFunc("/scenario/", controlsHandler.HandleScenario)
	mux.HandleFunc("/controls", controlsHandler.Handle)
	mux.HandleFunc("/refresh/", controlsHandler.HandleRefresh)
	mux.HandleFunc("/stats", statsHandler.Handle)
	mux.HandleFunc("/health", healthHandler.Handle)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

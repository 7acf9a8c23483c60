package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tickerwall/internal/app"
	"tickerwall/internal/metrics"
	"tickerwall/internal/web"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 0. Optional .env for local development
	_ = godotenv.Load()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config

	// 4. Start the reconciliation engine (The Hotpath Loop)
	go bootstrap.Engine.Run(ctx)
	slog.InfoContext(ctx, "✅ Engine (Hotpath) started")

	// 5. Optional streaming feed
	if bootstrap.Stream != nil {
		bootstrap.Stream.Start(ctx)
		defer bootstrap.Stream.Stop()
		slog.InfoContext(ctx, "✅ Stream worker started")
	}

	// 6. Metrics endpoint
	metricsServer := metrics.Serve(cfg.Web.MetricsAddr)
	defer metricsServer.Close()
	slog.InfoContext(ctx, "✅ Metrics exposed", slog.String("addr", cfg.Web.MetricsAddr))

	// 7. Control/API server
	server := web.NewServer(cfg.Web.Addr, bootstrap.Engine, slog.Default())
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "✨ Tickerwall fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	if err := server.Shutdown(context.Background()); err != nil {
		slog.Warn("HTTP shutdown failed", slog.Any("error", err))
	}
}

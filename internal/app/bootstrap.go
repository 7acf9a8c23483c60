// Package app orchestrates application startup: config, directories,
// persistence and the reconciliation engine.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tickerwall/internal/domain"
	"tickerwall/internal/engine"
	"tickerwall/internal/infra"
	"tickerwall/internal/quote"
	"tickerwall/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Catalog *domain.Catalog
	Engine  *engine.Engine
	Stream  *quote.StreamWorker

	archive *storage.SampleStore
	unlock  func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, dirs, DB,
// engine wiring).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Tickerwall...")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		slog.Warn("No config file found, using defaults")
		cfg = infra.DefaultConfig()
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	infra.PrintBanner(cfg)

	// 3. Workspace layout + singleton lock
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data")
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Instrument catalog
	instruments := cfg.Instruments
	if len(instruments) == 0 {
		instruments = domain.DefaultInstruments()
	}
	b.Catalog = domain.NewCatalog(instruments)
	if b.Catalog.Len() == 0 {
		return errors.New("no valid instruments configured")
	}

	// 5. Persistence: snapshot + local sample archive (WAL-mode)
	snapshots := storage.NewSnapshotManager(dataDir)
	archive, err := storage.NewSampleStore(filepath.Join(dataDir, "samples.db"))
	if err != nil {
		return fmt.Errorf("failed to open sample archive: %w", err)
	}
	b.archive = archive
	slog.Info("✅ Sample archive initialized (WAL-mode)", "dir", dataDir)

	// 6. Quote source + limiter
	client := quote.NewClient(
		quote.WithBaseURL(cfg.API.Quote.BaseURL),
		quote.WithToken(cfg.API.Quote.Token),
		quote.WithTimeout(time.Duration(cfg.API.Quote.TimeoutSec)*time.Second),
	)
	limiter := infra.NewRateLimiter(infra.RateLimiterConfig{
		MaxCallsPerWindow: cfg.API.RateLimit.CallsPerMinute,
		Window:            time.Minute,
		Cooldown:          time.Duration(cfg.API.RateLimit.CooldownSec) * time.Second,
	})

	// 7. Reconciliation engine
	eng := engine.New(engine.Options{
		Catalog:              b.Catalog,
		Source:               client,
		Limiter:              limiter,
		Archive:              archive,
		Snapshots:            snapshots,
		Mode:                 domain.ParseMode(cfg.Engine.Mode),
		TickInterval:         time.Duration(cfg.Engine.TickIntervalMS) * time.Millisecond,
		VolatilityMultiplier: cfg.Engine.VolatilityMultiplier,
		HistoryCapacity:      cfg.Engine.HistoryCapacity,
		LiveRefresh:          time.Duration(cfg.Engine.LiveRefreshSec) * time.Second,
		MarketPing:           time.Duration(cfg.Engine.MarketPingSec) * time.Second,
		SnapshotEvery:        time.Duration(cfg.Engine.SnapshotSaveSec) * time.Second,
	})
	b.Engine = eng
	slog.Info("✅ Engine wired",
		slog.String("mode", eng.Mode().String()),
		slog.Int("instruments", b.Catalog.Len()))

	// 8. Optional streaming feed
	if cfg.API.Stream.Enabled && cfg.API.Stream.WSURL != "" {
		tickers := make([]string, 0, b.Catalog.Len())
		for _, ins := range b.Catalog.All() {
			tickers = append(tickers, ins.Ticker)
		}
		b.Stream = quote.NewStreamWorker(cfg.API.Stream.WSURL, tickers, eng.SubmitStreamQuote)
		slog.Info("✅ Stream worker ready", slog.String("url", cfg.API.Stream.WSURL))
	}

	return nil
}

// Close releases process-wide resources in reverse order.
func (b *Bootstrap) Close() {
	if b.archive != nil {
		if err := b.archive.Close(); err != nil {
			slog.Warn("Sample archive close failed", slog.Any("error", err))
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}

package infra

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"tickerwall/internal/domain"
)

// GetPlatformUserAgent generates a browser-like User-Agent string based
// on the current OS. Public chart endpoints reject obvious bot agents.
func GetPlatformUserAgent() string {
	chromeVer := "120.0.0.0"
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		linuxArch := "x86_64"
		if runtime.GOARCH == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	default:
		return "Mozilla/5.0 (compatible; Tickerwall/1.0)"
	}
}

// Config holds the full application configuration.
// Sensitive values may be overridden through environment variables
// after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Engine struct {
		Mode                 string  `yaml:"mode"` // "simulation" or "live"
		TickIntervalMS       int     `yaml:"tick_interval_ms"`
		VolatilityMultiplier float64 `yaml:"volatility_multiplier"`
		HistoryCapacity      int     `yaml:"history_capacity"`
		LiveRefreshSec       int     `yaml:"live_refresh_sec"`
		MarketPingSec        int     `yaml:"market_ping_sec"`
		SnapshotSaveSec      int     `yaml:"snapshot_save_sec"`
	} `yaml:"engine"`

	API struct {
		Quote struct {
			BaseURL    string `yaml:"base_url"`
			TimeoutSec int    `yaml:"timeout_sec"`
			Token      string `yaml:"token"`
		} `yaml:"quote"`
		Stream struct {
			Enabled bool   `yaml:"enabled"`
			WSURL   string `yaml:"ws_url"`
		} `yaml:"stream"`
		RateLimit struct {
			CallsPerMinute int `yaml:"calls_per_minute"`
			CooldownSec    int `yaml:"cooldown_sec"`
		} `yaml:"rate_limit"`
	} `yaml:"api"`

	Web struct {
		Addr        string `yaml:"addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"web"`

	Instruments []domain.Instrument `yaml:"instruments"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a runnable configuration without a file, used
// by the offline checker and as the fallback when no config exists.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tickerwall"
	}
	if c.Engine.Mode == "" {
		c.Engine.Mode = "simulation"
	}
	if c.Engine.TickIntervalMS == 0 {
		c.Engine.TickIntervalMS = 1000
	}
	if c.Engine.VolatilityMultiplier == 0 {
		c.Engine.VolatilityMultiplier = 2.5
	}
	if c.Engine.HistoryCapacity == 0 {
		c.Engine.HistoryCapacity = 50
	}
	if c.Engine.LiveRefreshSec == 0 {
		c.Engine.LiveRefreshSec = 12
	}
	if c.Engine.MarketPingSec == 0 {
		c.Engine.MarketPingSec = 60
	}
	if c.Engine.SnapshotSaveSec == 0 {
		c.Engine.SnapshotSaveSec = 30
	}
	if c.API.Quote.BaseURL == "" {
		c.API.Quote.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.API.Quote.TimeoutSec == 0 {
		c.API.Quote.TimeoutSec = 10
	}
	if c.API.RateLimit.CallsPerMinute == 0 {
		c.API.RateLimit.CallsPerMinute = 60
	}
	if c.API.RateLimit.CooldownSec == 0 {
		c.API.RateLimit.CooldownSec = 60
	}
	if c.Web.Addr == "" {
		c.Web.Addr = "localhost:8080"
	}
	if c.Web.MetricsAddr == "" {
		c.Web.MetricsAddr = "localhost:9100"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.Instruments) == 0 {
		c.Instruments = domain.DefaultInstruments()
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Engine.Mode != "simulation" && c.Engine.Mode != "live" {
		return fmt.Errorf("engine mode must be \"simulation\" or \"live\", got %q", c.Engine.Mode)
	}
	if c.Engine.TickIntervalMS < 250 || c.Engine.TickIntervalMS > 5000 {
		return fmt.Errorf("tick interval must be within [250, 5000] ms, got %d", c.Engine.TickIntervalMS)
	}
	if c.Engine.VolatilityMultiplier < 0 || c.Engine.VolatilityMultiplier > 7.5 {
		return fmt.Errorf("volatility multiplier must be within [0, 7.5], got %v", c.Engine.VolatilityMultiplier)
	}
	if c.Engine.HistoryCapacity < 2 {
		return fmt.Errorf("history capacity must be at least 2, got %d", c.Engine.HistoryCapacity)
	}
	if c.API.Stream.Enabled && c.API.Stream.WSURL == "" {
		return fmt.Errorf("stream enabled but ws_url is empty")
	}
	for _, ins := range c.Instruments {
		if ins.Ticker == "" {
			return fmt.Errorf("instrument with empty ticker")
		}
		if ins.InitialPrice <= 0 {
			return fmt.Errorf("instrument %s: initial price must be positive", ins.Ticker)
		}
	}
	return nil
}

// overrideWithEnv applies environment variables over file values.
// Environment takes precedence so tokens stay out of config files.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("TICKERWALL_QUOTE_TOKEN"); token != "" {
		cfg.API.Quote.Token = token
	}
	if url := os.Getenv("TICKERWALL_QUOTE_URL"); url != "" {
		cfg.API.Quote.BaseURL = url
	}
	if mode := os.Getenv("TICKERWALL_MODE"); mode != "" {
		cfg.Engine.Mode = mode
	}
	if level := os.Getenv("TICKERWALL_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

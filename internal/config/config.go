package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/efreitasn/lobster/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the order book server.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Symbols         []string      `env:"SYMBOLS" envSeparator:","`
	MatchInterval   time.Duration `env:"MATCH_INTERVAL" envDefault:"0s"`
	TradeIDScheme   string        `env:"TRADE_ID_SCHEME" envDefault:"uuid"`
	DefaultDepth    int           `env:"DEFAULT_DEPTH" envDefault:"10"`
	MaxDepth        int           `env:"MAX_DEPTH" envDefault:"50"`
	WebhookTimeout  time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from a .env file (if present) and environment
// variables, applies defaults, and validates values. It returns an error
// for any invalid value.
func Load() (*Config, error) {
	// A missing .env file is fine; real environment variables win.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if !isValidLogLevel(cfg.LogLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", cfg.Port)
	}
	if cfg.MatchInterval < 0 {
		return nil, fmt.Errorf("invalid MATCH_INTERVAL: %v, must not be negative", cfg.MatchInterval)
	}
	if cfg.TradeIDScheme != "uuid" && cfg.TradeIDScheme != "sequence" {
		return nil, fmt.Errorf("invalid TRADE_ID_SCHEME: %q, must be one of: uuid, sequence", cfg.TradeIDScheme)
	}
	if cfg.DefaultDepth < 1 {
		return nil, fmt.Errorf("invalid DEFAULT_DEPTH: %d, must be positive", cfg.DefaultDepth)
	}
	if cfg.MaxDepth < cfg.DefaultDepth {
		return nil, fmt.Errorf("invalid MAX_DEPTH: %d, must be at least DEFAULT_DEPTH (%d)", cfg.MaxDepth, cfg.DefaultDepth)
	}
	for i, s := range cfg.Symbols {
		s = strings.TrimSpace(s)
		cfg.Symbols[i] = s
		if err := domain.ValidateSymbol(s); err != nil {
			return nil, fmt.Errorf("invalid SYMBOLS: %w", err)
		}
	}

	return &cfg, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Package config loads runtime settings from POS_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/ledger"
	"github.com/warp/pos-engine/pos"
)

// Config holds runtime configuration for the server.
type Config struct {
	DBPath string `envconfig:"DB_PATH" default:"pos.db"`
	Addr   string `envconfig:"ADDR" default:":8080"`

	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	AccountMode         string          `envconfig:"ACCOUNT_MODE" default:"strict"`
	AdjustmentValuation string          `envconfig:"ADJUSTMENT_VALUATION" default:"fifo"`
	TaxRate             decimal.Decimal `envconfig:"TAX_RATE" default:"0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// IntegrityInterval is how often the trial balance and inventory
	// reconciliation are checked. Zero disables the check.
	IntegrityInterval time.Duration `envconfig:"INTEGRITY_INTERVAL" default:"1h"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int `envconfig:"RATE_LIMIT" default:"120"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("pos", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("POS_DB_PATH must not be empty")
	}
	if !ledger.AccountMode(c.AccountMode).Valid() {
		return fmt.Errorf("POS_ACCOUNT_MODE must be strict or lenient, got %q", c.AccountMode)
	}
	if !pos.AdjustmentValuation(c.AdjustmentValuation).Valid() {
		return fmt.Errorf("POS_ADJUSTMENT_VALUATION must be fifo or current_cost, got %q", c.AdjustmentValuation)
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("POS_TAX_RATE must be between 0 and 100, got %s", c.TaxRate)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("POS_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if c.IntegrityInterval < 0 {
		return fmt.Errorf("POS_INTEGRITY_INTERVAL must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("POS_RATE_LIMIT must not be negative")
	}
	return nil
}

// ProcessorOptions maps the config onto pos.Options.
func (c *Config) ProcessorOptions() pos.Options {
	return pos.Options{
		TaxRate:             c.TaxRate,
		AdjustmentValuation: pos.AdjustmentValuation(c.AdjustmentValuation),
	}
}

// BooksOptions maps the config onto ledger options.
func (c *Config) BooksOptions(logger *slog.Logger) []ledger.Option {
	return []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithAccountMode(ledger.AccountMode(c.AccountMode)),
	}
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("POS_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// NewLogger returns a slog.Logger writing to stdout in the configured format.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil {
		if lvl, err := cfg.level(); err == nil {
			opts.Level = lvl
		}
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

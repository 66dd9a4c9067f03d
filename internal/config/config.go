// Package config loads client configuration from defaults, an optional
// YAML file, and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for the client core and the
// bindwatch daemon.
type Config struct {
	// APIBaseURL is the primary backend. Required.
	APIBaseURL string `yaml:"api_base_url" env:"AIRLINK_API_BASE_URL"`
	// InvoiceBaseURL is the distinct invoice-service host.
	InvoiceBaseURL string `yaml:"invoice_base_url" env:"AIRLINK_INVOICE_BASE_URL"`
	// InvoiceRoutePrefixes lists routes served by the invoice host.
	InvoiceRoutePrefixes []string `yaml:"invoice_route_prefixes"`

	// StatePath is the durable state file. Required.
	StatePath string `yaml:"state_path" env:"AIRLINK_STATE_PATH"`

	RequestTimeout     time.Duration `yaml:"request_timeout" env:"AIRLINK_REQUEST_TIMEOUT"`
	MinVisibleDuration time.Duration `yaml:"min_visible_duration" env:"AIRLINK_MIN_VISIBLE_DURATION"`

	// ReconcileCron schedules periodic reconciliation in the daemon.
	ReconcileCron string `yaml:"reconcile_cron" env:"AIRLINK_RECONCILE_CRON"`

	// MetricsAddr is the daemon's metrics/health listen address.
	MetricsAddr string `yaml:"metrics_addr" env:"AIRLINK_METRICS_ADDR"`

	// AuthToken and UserID seed the session for headless runs. Env only;
	// tokens do not belong in config files.
	AuthToken string `yaml:"-" env:"AIRLINK_AUTH_TOKEN"`
	UserID    string `yaml:"-" env:"AIRLINK_USER_ID"`

	EnableResilience bool    `yaml:"enable_resilience" env:"AIRLINK_ENABLE_RESILIENCE"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" env:"AIRLINK_RATE_LIMIT_RPS"`
	RateLimitBurst   int     `yaml:"rate_limit_burst" env:"AIRLINK_RATE_LIMIT_BURST"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		InvoiceRoutePrefixes: []string{"/invoice"},
		StatePath:            "airlink-state.json",
		RequestTimeout:       30 * time.Second,
		MinVisibleDuration:   600 * time.Millisecond,
		ReconcileCron:        "@every 5m",
		MetricsAddr:          ":9190",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment variables. A .env file
// in the working directory is loaded best-effort before env decoding.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("config: api_base_url is required")
	}
	if c.StatePath == "" {
		return fmt.Errorf("config: state_path is required")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: request_timeout must not be negative")
	}
	if c.MinVisibleDuration < 0 {
		return fmt.Errorf("config: min_visible_duration must not be negative")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("config: rate_limit_rps must not be negative")
	}
	return nil
}

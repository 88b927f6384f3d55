// Package config loads client settings from a .env file and environment
// variables. Environment variables take precedence over .env values; CLI
// flags take precedence over both.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the gateway client configuration.
type Config struct {
	GatewayURL   string
	HTTPTimeout  time.Duration
	PollTimeout  time.Duration
	PollInterval time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables. The gateway URL may be absent here when the caller supplies
// it by flag.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Config{
		GatewayURL:   os.Getenv("JANUS_URL"),
		HTTPTimeout:  30 * time.Second,
		PollTimeout:  70 * time.Second,
		PollInterval: time.Second,
	}

	var err error
	if cfg.HTTPTimeout, err = duration("JANUS_HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.PollTimeout, err = duration("JANUS_POLL_TIMEOUT", cfg.PollTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = duration("JANUS_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is loaded from the environment at startup.
type Config struct {
	Port     string `env:"VECKOPENG_PORT" envDefault:"8080"`
	DBPath   string `env:"VECKOPENG_DB_PATH" envDefault:"veckopeng.db"`
	LogLevel string `env:"VECKOPENG_LOG_LEVEL" envDefault:"info"`

	// FamilyKey is the shared household secret clients send in the
	// X-Family-Key header. Empty means the API runs open (dev mode).
	FamilyKey string `env:"VECKOPENG_FAMILY_KEY"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

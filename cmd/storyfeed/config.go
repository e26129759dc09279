package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "STORYPAGER_"

// Config is read from STORYPAGER_* environment variables.
type Config struct {
	BaseURL     string        `env:"BASE_URL"     envDefault:"http://localhost:8080"`
	DBDriver    string        `env:"DB_DRIVER"    envDefault:"sqlite"`
	DBDSN       string        `env:"DB_DSN"       envDefault:"storyfeed.db"`
	Profile     string        `env:"PROFILE"      envDefault:"default"`
	PageSize    int           `env:"PAGE_SIZE"    envDefault:"10"`
	MaxRetries  int           `env:"MAX_RETRIES"  envDefault:"2"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	LogLevel    slog.Level    `env:"LOG_LEVEL"    envDefault:"warn"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

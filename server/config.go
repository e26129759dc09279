package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every server environment variable.
const EnvPrefix = "STORYSERVER_"

// Config describes the reference story endpoint.
type Config struct {
	Addr           string        `env:"ADDR"                         envDefault:":8080"`
	DBDriver       string        `env:"DB_DRIVER"                    envDefault:"sqlite"`
	DBDSN          string        `env:"DB_DSN"                       envDefault:"storyserver.db"`
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL       time.Duration `env:"TOKEN_TTL"                    envDefault:"720h"`
	PhotoDir       string        `env:"PHOTO_DIR"                    envDefault:"photos"`
	PublicURL      string        `env:"PUBLIC_URL"                   envDefault:"http://localhost:8080"`
	MaxPhotoBytes  int64         `env:"MAX_PHOTO_BYTES"              envDefault:"1000000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"              envDefault:"30s"`
	LogLevel       slog.Level    `env:"LOG_LEVEL"                    envDefault:"info"`
}

// LoadConfig reads the configuration from STORYSERVER_* variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// AllowedOrigins is the CORS allow-list for the operator UI.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// DatabaseURL selects the schedule store. A postgres:// URL uses
	// lib/pq; anything else is treated as a SQLite file path.
	DatabaseURL string `env:"DATABASE_URL" envDefault:"orchestrator.db"`
	CatalogPath string `env:"CATALOG_PATH" envDefault:"catalog.yaml"`

	EncoderURL     string        `env:"ENCODER_URL"`
	EncoderTimeout time.Duration `env:"ENCODER_TIMEOUT" envDefault:"5s"`

	// PreviewBaseURL is where the synchronizer fetches the preview manifest
	// from. Empty means this server's own /preview endpoint.
	PreviewBaseURL   string `env:"PREVIEW_BASE_URL"`
	PreviewRendition string `env:"PREVIEW_RENDITION" envDefault:"720p"`

	SlidingWindowSize int `env:"SLIDING_WINDOW_SIZE" envDefault:"6"`

	PositionPollInterval time.Duration `env:"POSITION_POLL_INTERVAL" envDefault:"500ms"`
	ManifestPollInterval time.Duration `env:"MANIFEST_POLL_INTERVAL" envDefault:"500ms"`
	ManifestMaxAttempts  int           `env:"MANIFEST_MAX_ATTEMPTS" envDefault:"40"`
	PlayerMaxRecoveries  int           `env:"PLAYER_MAX_RECOVERIES" envDefault:"3"`
	TeardownTimeout      time.Duration `env:"TEARDOWN_TIMEOUT" envDefault:"1s"`
	SchedulerInterval    time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"30s"`
}

// Load reads the .env files (default ".env") into the environment and parses
// the result into a Config. A missing .env file is not an error; callers can
// rely on system env or defaults.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

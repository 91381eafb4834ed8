package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config carries client-wide settings sourced from the environment.
type Config struct {
	APIBaseURL  string        `envconfig:"API_BASE_URL" default:"http://localhost:8089"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	// Storage selects the persisted key-value backend: memory, redis or postgres.
	Storage     string `envconfig:"STORAGE" default:"memory"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	// Client-side throttle for directory fetches.
	RatePerSecond int `envconfig:"RATE_PER_SECOND" default:"10"`
	RateBurst     int `envconfig:"RATE_BURST" default:"20"`
}

// Load reads configuration from TALKBOARD_* environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("talkboard", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// internal/config/config.go
//
// Process configuration read from the environment (optionally seeded from a
// `.env` file by main). Every field has a working default.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the server.
type Config struct {
	Port      string `env:"PORT" envDefault:"4000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // "json" | "console"

	// ClientOrigin is the single origin allowed by CORS and the websocket
	// handshake. "*" allows any origin.
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	GridSize     int           `env:"GRID_SIZE" envDefault:"100"`
	LockDuration time.Duration `env:"LOCK_DURATION" envDefault:"60s"`

	// JournalDSN is a SQLite path for the placement journal; empty disables it.
	JournalDSN string `env:"JOURNAL_DSN"`

	ObserverBuffer  int           `env:"OBSERVER_BUFFER" envDefault:"64"`
	WriteTimeout    time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	PingInterval    time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the environment into a validated Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.GridSize <= 0 {
		errs = append(errs, fmt.Errorf("GRID_SIZE must be positive, got %d", c.GridSize))
	}
	if c.LockDuration <= 0 {
		errs = append(errs, fmt.Errorf("LOCK_DURATION must be positive, got %s", c.LockDuration))
	}
	if c.ObserverBuffer <= 0 {
		errs = append(errs, fmt.Errorf("OBSERVER_BUFFER must be positive, got %d", c.ObserverBuffer))
	}
	if c.WriteTimeout <= 0 || c.PingInterval <= 0 {
		errs = append(errs, errors.New("websocket timeouts must be positive"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must be set"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

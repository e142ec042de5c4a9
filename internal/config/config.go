// Package config provides process configuration and capture tuning profiles
// for the booking capture engine.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level configuration loaded from the environment.
type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	// Storage
	DBPath string `envconfig:"DB_PATH" default:""`

	// Camera
	CameraID int `envconfig:"CAMERA_ID" default:"0"`

	// Device class the engine is tuned for ("desktop" or "mobile").
	DeviceClass string `envconfig:"DEVICE_CLASS" default:"desktop"`

	// Validator backend. When empty the engine runs with the built-in
	// accept-all validator, which is only suitable for development.
	ValidatorURL     string `envconfig:"VALIDATOR_URL" default:""`
	ValidatorTimeout int    `envconfig:"VALIDATOR_TIMEOUT_SEC" default:"30"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := ProfileFor(cfg.DeviceClass); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

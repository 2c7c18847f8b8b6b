// Package config loads goosd service configuration from YAML with sensible
// defaults, so an empty or absent file yields a runnable service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all goosd settings.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite file for the observability store. Empty disables
	// event logging and heartbeats.
	DBPath string `yaml:"db_path"`

	// MaxBodyBytes caps mutation request bodies. Requests over the cap have
	// their connection dropped without a response.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// HeartbeatSeconds is the interval between stream keep-alive comments.
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`

	// SubscriberBuffer is the per-subscriber event channel depth. Subscribers
	// whose buffer fills are evicted.
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig controls observability-store cleanup.
type RetentionConfig struct {
	EventLogsDays  int  `yaml:"event_logs_days"`
	HeartbeatsDays int  `yaml:"heartbeats_days"`
	RunVacuumAfter bool `yaml:"run_vacuum_after"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Listen:           ":8090",
		DBPath:           "goosd.db",
		MaxBodyBytes:     1_000_000,
		HeartbeatSeconds: 15,
		SubscriberBuffer: 16,
		Retention: RetentionConfig{
			EventLogsDays:  30,
			HeartbeatsDays: 7,
		},
	}
}

// LoadConfig reads YAML from path, layered over defaults. A missing file is
// not an error; the defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for nonsensical values.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.HeartbeatSeconds <= 0 {
		return fmt.Errorf("heartbeat_seconds must be positive, got %d", c.HeartbeatSeconds)
	}
	if c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive, got %d", c.SubscriberBuffer)
	}
	return nil
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// Package config loads application settings from SESSIONFLOW_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Backend selects the provider backend
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds every runtime setting
type Config struct {
	// Backend selects the provider backend: "memory" or "redis"
	Backend string `env:"SESSIONFLOW_BACKEND" envDefault:"memory"`

	// RedisURL is the Redis connection string for the redis backend
	RedisURL string `env:"SESSIONFLOW_REDIS_URL" envDefault:"redis://localhost:6379"`

	// PlayerName is the local player's display name
	PlayerName string `env:"SESSIONFLOW_PLAYER_NAME" envDefault:"Player"`

	// InstanceTag disambiguates identity profiles when several local
	// instances run against the same backend
	InstanceTag string `env:"SESSIONFLOW_INSTANCE_TAG"`

	// PlayerTag is appended to the identity profile in headless runs
	PlayerTag string `env:"SESSIONFLOW_PLAYER_TAG"`

	// Headless marks a non-interactive run
	Headless bool `env:"SESSIONFLOW_HEADLESS"`

	// Version is the build tag published on sessions; quick-join only
	// matches sessions carrying the same value
	Version string `env:"SESSIONFLOW_VERSION" envDefault:"1.0.0"`

	// SceneTag is the scene tag published on sessions and matched on join
	SceneTag string `env:"SESSIONFLOW_SCENE_TAG" envDefault:"main"`

	// VisibilityTag is the visibility tag published on sessions
	VisibilityTag string `env:"SESSIONFLOW_VISIBILITY_TAG" envDefault:"false"`

	// SceneTable maps assignment scene indices to scene names
	SceneTable []string `env:"SESSIONFLOW_SCENE_TABLE" envSeparator:","`

	// MaxPlayers is the capacity for created sessions
	MaxPlayers int `env:"SESSIONFLOW_MAX_PLAYERS" envDefault:"20"`

	// HeartbeatInterval is the session keep-alive period
	HeartbeatInterval time.Duration `env:"SESSIONFLOW_HEARTBEAT_INTERVAL" envDefault:"15s"`

	// AutoJoin makes initialization continue into a join attempt
	AutoJoin bool `env:"SESSIONFLOW_AUTO_JOIN" envDefault:"true"`

	// ListenAddr is the address of the local observer HTTP endpoint
	ListenAddr string `env:"SESSIONFLOW_LISTEN_ADDR" envDefault:":8090"`
}

// Load reads configuration from the environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.Backend != BackendMemory && cfg.Backend != BackendRedis {
		return Config{}, fmt.Errorf("invalid SESSIONFLOW_BACKEND %q: must be %q or %q",
			cfg.Backend, BackendMemory, BackendRedis)
	}
	return cfg, nil
}

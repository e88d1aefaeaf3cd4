// Package config loads netpipe's tunables from the environment into a
// typed struct, following a three-tier Load/LoadOrDefault/Default shape.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable knob a netpipe deployment needs.
type Config struct {
	Buffer   BufferConfig
	Executor ExecutorConfig
	Logging  LogConfig
}

// BufferConfig holds buffer sizing knobs. The echo server passes
// MaxCapacity to the transport as the max capacity of each inbound
// buffer; InitialCapacity is not read by the echo server.
type BufferConfig struct {
	InitialCapacity int `envconfig:"BUFFER_INITIAL_CAPACITY" default:"256"`
	MaxCapacity     int `envconfig:"BUFFER_MAX_CAPACITY" default:"8388608"`
}

// ExecutorConfig controls the event-loop group (executor package).
type ExecutorConfig struct {
	Loops      int `envconfig:"EXECUTOR_LOOPS" default:"4"`
	QueueDepth int `envconfig:"EXECUTOR_QUEUE_DEPTH" default:"256"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	JSON  bool   `envconfig:"LOG_JSON" default:"false"`
}

const envPrefix = "NETPIPE"

// Load reads configuration from NETPIPE_-prefixed environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault reads configuration from the environment, falling back
// to Default on any parse error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Buffer: BufferConfig{
			InitialCapacity: 256,
			MaxCapacity:     8 << 20,
		},
		Executor: ExecutorConfig{
			Loops:      4,
			QueueDepth: 256,
		},
		Logging: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

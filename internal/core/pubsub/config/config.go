package config

import (
	"fmt"
	"os"
)

const (
	ProviderMemory = "memory"
	ProviderNATS   = "nats"
)

// Config selects the broker that carries change events.
type Config struct {
	Provider      string `yaml:"provider"`
	NATSURL       string `yaml:"nats_url"`
	ClientName    string `yaml:"client_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	// BufferSize is the per-consumer channel size.
	BufferSize int `yaml:"buffer_size"`
}

func DefaultConfig() Config {
	return Config{
		Provider:   ProviderMemory,
		NATSURL:    "nats://localhost:4222",
		ClientName: "daybook",
		BufferSize: 256,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.NATSURL == "" {
		c.NATSURL = d.NATSURL
	}
	if c.ClientName == "" {
		c.ClientName = d.ClientName
	}
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// Setting DAYBOOK_NATS_URL also switches the provider to nats.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("DAYBOOK_NATS_URL"); val != "" {
		c.NATSURL = val
		c.Provider = ProviderNATS
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in pubsub config.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMemory:
	case ProviderNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("pubsub.nats_url is required for the nats provider")
		}
	default:
		return fmt.Errorf("unknown pubsub provider %q (must be memory or nats)", c.Provider)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("pubsub.buffer_size cannot be negative")
	}
	return nil
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	identity "github.com/syntrixbase/daybook/internal/core/identity/config"
	pubsub "github.com/syntrixbase/daybook/internal/core/pubsub/config"
	storage "github.com/syntrixbase/daybook/internal/core/storage/config"
	gateway "github.com/syntrixbase/daybook/internal/gateway/config"
	"github.com/syntrixbase/daybook/internal/server"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// DataDir anchors runtime paths such as the log directory.
	DataDir string `yaml:"data_dir"`

	Server  server.Config         `yaml:"server"`
	Gateway gateway.GatewayConfig `yaml:"gateway"`
	Stores  StoresConfig          `yaml:"stores"`
	Logging LoggingConfig         `yaml:"logging"`

	// Components
	Storage  storage.Config  `yaml:"storage"`
	Identity identity.Config `yaml:"identity"`
	PubSub   pubsub.Config   `yaml:"pubsub"`
}

// StoresConfig tunes the bucketed and append stores.
type StoresConfig struct {
	// EmitChanges publishes a change event after every successful mutation.
	EmitChanges bool `yaml:"emit_changes"`
}

func (c *StoresConfig) ApplyDefaults()           { _ = c }
func (c *StoresConfig) ApplyEnvOverrides()       { _ = c }
func (c *StoresConfig) ResolvePaths(_, _ string) { _ = c }
func (c *StoresConfig) Validate() error          { return nil }

// Default returns the configuration before any file is read.
func Default() *Config {
	return &Config{
		DataDir:  ".",
		Server:   server.DefaultConfig(),
		Gateway:  gateway.DefaultGatewayConfig(),
		Stores:   StoresConfig{EmitChanges: true},
		Logging:  DefaultLoggingConfig(),
		Storage:  storage.DefaultConfig(),
		Identity: identity.DefaultConfig(),
		PubSub:   pubsub.DefaultConfig(),
	}
}

// LoadConfig loads configuration from dir and the environment.
// Order: defaults -> config.yml -> config.local.yml -> ApplyDefaults ->
// ApplyEnvOverrides -> ResolvePaths -> Validate
func LoadConfig(dir string) (*Config, error) {
	cfg := Default()

	loadFile(filepath.Join(dir, "config.yml"), cfg)
	loadFile(filepath.Join(dir, "config.local.yml"), cfg)

	if val := os.Getenv("DAYBOOK_DATA_DIR"); val != "" {
		cfg.DataDir = val
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}

	if err := ApplyServiceConfigs(dir, cfg.DataDir,
		&cfg.Server,
		&cfg.Gateway,
		&cfg.Stores,
		&cfg.Logging,
		&cfg.Storage,
		&cfg.Identity,
		&cfg.PubSub,
	); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// loadFile overlays filename onto cfg. A missing file is skipped; an
// unreadable or malformed one is reported and skipped.
func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		slog.Warn("Error reading config file", "file", filename, "error", err)
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Error parsing config file", "file", filename, "error", err)
	}
}

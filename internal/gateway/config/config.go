package config

import (
	"fmt"
	"time"
)

type GatewayConfig struct {
	// MaxBodyBytes caps request bodies on the REST surface.
	MaxBodyBytes int64          `yaml:"max_body_bytes"`
	Realtime     RealtimeConfig `yaml:"realtime"`
}

type RealtimeConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	// AllowDevOrigin accepts any localhost origin.
	AllowDevOrigin bool `yaml:"allow_dev_origin"`
	// SendBuffer is the per-connection queue; a full queue drops events.
	SendBuffer   int           `yaml:"send_buffer"`
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxBodyBytes: 1 << 20,
		Realtime: RealtimeConfig{
			AllowedOrigins: []string{"http://localhost:8080", "http://localhost:3000", "http://localhost:5173"},
			AllowDevOrigin: true,
			SendBuffer:     64,
			PingInterval:   30 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (g *GatewayConfig) ApplyDefaults() {
	d := DefaultGatewayConfig()
	if g.MaxBodyBytes == 0 {
		g.MaxBodyBytes = d.MaxBodyBytes
	}
	if len(g.Realtime.AllowedOrigins) == 0 {
		g.Realtime.AllowedOrigins = d.Realtime.AllowedOrigins
	}
	if g.Realtime.SendBuffer == 0 {
		g.Realtime.SendBuffer = d.Realtime.SendBuffer
	}
	if g.Realtime.PingInterval == 0 {
		g.Realtime.PingInterval = d.Realtime.PingInterval
	}
	if g.Realtime.WriteTimeout == 0 {
		g.Realtime.WriteTimeout = d.Realtime.WriteTimeout
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// No env vars for gateway config currently.
func (g *GatewayConfig) ApplyEnvOverrides() { _ = g }

// ResolvePaths resolves relative paths using the given directories.
// No paths to resolve in gateway config.
func (g *GatewayConfig) ResolvePaths(_, _ string) { _ = g }

// Validate returns an error if the configuration is invalid.
func (g *GatewayConfig) Validate() error {
	if g.MaxBodyBytes < 0 {
		return fmt.Errorf("gateway.max_body_bytes cannot be negative")
	}
	if g.Realtime.SendBuffer < 0 {
		return fmt.Errorf("gateway.realtime.send_buffer cannot be negative")
	}
	if g.Realtime.PingInterval < 0 || g.Realtime.WriteTimeout < 0 {
		return fmt.Errorf("gateway.realtime durations cannot be negative")
	}
	return nil
}

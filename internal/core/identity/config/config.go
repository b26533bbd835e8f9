package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	AuthN AuthNConfig `yaml:"authn"`
}

// AuthNConfig configures verification of tokens minted by the external
// identity provider.
type AuthNConfig struct {
	// TokenSecret is the shared HS256 signing secret.
	TokenSecret string        `yaml:"token_secret"`
	Issuer      string        `yaml:"issuer"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	// Leeway tolerates clock skew between issuer and server.
	Leeway time.Duration `yaml:"leeway"`
}

func DefaultConfig() Config {
	return Config{
		AuthN: AuthNConfig{
			Issuer:   "daybook",
			TokenTTL: time.Hour,
			Leeway:   30 * time.Second,
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.AuthN.Issuer == "" {
		c.AuthN.Issuer = defaults.AuthN.Issuer
	}
	if c.AuthN.TokenTTL == 0 {
		c.AuthN.TokenTTL = defaults.AuthN.TokenTTL
	}
	if c.AuthN.Leeway == 0 {
		c.AuthN.Leeway = defaults.AuthN.Leeway
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("DAYBOOK_TOKEN_SECRET"); val != "" {
		c.AuthN.TokenSecret = val
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in identity config.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	if len(c.AuthN.TokenSecret) < 16 {
		return errors.New("identity.authn.token_secret must be at least 16 bytes (set DAYBOOK_TOKEN_SECRET)")
	}
	if c.AuthN.TokenTTL < 0 || c.AuthN.Leeway < 0 {
		return errors.New("identity.authn durations cannot be negative")
	}
	return nil
}

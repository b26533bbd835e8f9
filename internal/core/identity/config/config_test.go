package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Lifecycle(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, "daybook", cfg.AuthN.Issuer)
	assert.Equal(t, time.Hour, cfg.AuthN.TokenTTL)
	assert.Error(t, cfg.Validate(), "secret is required")

	t.Setenv("DAYBOOK_TOKEN_SECRET", "0123456789abcdef")
	cfg.ApplyEnvOverrides()
	assert.NoError(t, cfg.Validate())

	cfg.AuthN.Leeway = -time.Second
	assert.Error(t, cfg.Validate())
}

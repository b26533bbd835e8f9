package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "daybook", cfg.Mongo.DatabaseName)
	assert.Equal(t, "documents", cfg.Mongo.DataCollection)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DAYBOOK_MONGO_URI", "mongodb://db:27017")
	t.Setenv("DAYBOOK_DB_NAME", "prod")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, BackendMongo, cfg.Backend)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "prod", cfg.Mongo.DatabaseName)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Backend: BackendMemory}, false},
		{"mongo", Config{Backend: BackendMongo, Mongo: MongoConfig{URI: "mongodb://x", DatabaseName: "d"}}, false},
		{"mongo without uri", Config{Backend: BackendMongo, Mongo: MongoConfig{DatabaseName: "d"}}, true},
		{"mongo without db", Config{Backend: BackendMongo, Mongo: MongoConfig{URI: "mongodb://x"}}, true},
		{"unknown", Config{Backend: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package config

import (
	"fmt"
	"os"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

type Config struct {
	// Backend selects the document store: "memory" or "mongo".
	Backend string      `yaml:"backend"`
	Mongo   MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI            string `yaml:"uri"`
	DatabaseName   string `yaml:"database_name"`
	DataCollection string `yaml:"data_collection"`
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			DatabaseName:   "daybook",
			DataCollection: "documents",
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = defaults.Mongo.URI
	}
	if c.Mongo.DatabaseName == "" {
		c.Mongo.DatabaseName = defaults.Mongo.DatabaseName
	}
	if c.Mongo.DataCollection == "" {
		c.Mongo.DataCollection = defaults.Mongo.DataCollection
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// Setting DAYBOOK_MONGO_URI also switches the backend to mongo.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("DAYBOOK_MONGO_URI"); val != "" {
		c.Mongo.URI = val
		c.Backend = BackendMongo
	}
	if val := os.Getenv("DAYBOOK_DB_NAME"); val != "" {
		c.Mongo.DatabaseName = val
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in storage config.
func (c *Config) ResolvePaths(_, _ string) { _ = c }

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongo backend")
		}
		if c.Mongo.DatabaseName == "" {
			return fmt.Errorf("storage.mongo.database_name is required for the mongo backend")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q (must be memory or mongo)", c.Backend)
	}
}

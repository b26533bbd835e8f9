package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/daybook/internal/core/storage/config"
	"github.com/syntrixbase/daybook/internal/core/storage/memory"
	"github.com/syntrixbase/daybook/internal/core/storage/mongo"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
)

type DocumentStore = types.DocumentStore

// StorageFactory owns the configured document backend.
type StorageFactory interface {
	Document() types.DocumentStore
	Close() error
}

// Dependency injection for testing
var newMongoProvider = func(ctx context.Context, cfg config.MongoConfig) (types.DocumentProvider, error) {
	return mongo.NewProvider(ctx, cfg.URI, cfg.DatabaseName, cfg.DataCollection)
}

type factory struct {
	provider types.DocumentProvider
	docStore types.DocumentStore
}

// NewFactory opens the backend named by cfg.Backend.
func NewFactory(ctx context.Context, cfg config.Config) (StorageFactory, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		slog.Info("Using in-memory document store")
		return &factory{docStore: memory.NewStore()}, nil
	case config.BackendMongo:
		p, err := newMongoProvider(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongo backend: %w", err)
		}
		slog.Info("Connected to MongoDB", "database", cfg.Mongo.DatabaseName)
		return &factory{provider: p, docStore: p.Document()}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Backend)
	}
}

func (f *factory) Document() types.DocumentStore {
	return f.docStore
}

func (f *factory) Close() error {
	ctx := context.Background()
	if f.provider != nil {
		return f.provider.Close(ctx)
	}
	return f.docStore.Close(ctx)
}

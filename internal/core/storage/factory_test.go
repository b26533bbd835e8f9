package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/core/storage/config"
	"github.com/syntrixbase/daybook/internal/core/storage/memory"
	"github.com/syntrixbase/daybook/internal/core/storage/types"
)

type mockProvider struct {
	mock.Mock
	store types.DocumentStore
}

func (m *mockProvider) Document() types.DocumentStore { return m.store }

func (m *mockProvider) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestNewFactory_Memory(t *testing.T) {
	f, err := NewFactory(context.Background(), config.Config{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, f.Document())
	assert.NoError(t, f.Close())
}

func TestNewFactory_Mongo(t *testing.T) {
	orig := newMongoProvider
	defer func() { newMongoProvider = orig }()

	p := &mockProvider{store: memory.NewStore()}
	p.On("Close", mock.Anything).Return(nil)
	newMongoProvider = func(ctx context.Context, cfg config.MongoConfig) (types.DocumentProvider, error) {
		assert.Equal(t, "daybook", cfg.DatabaseName)
		return p, nil
	}

	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendMongo
	f, err := NewFactory(context.Background(), cfg)
	require.NoError(t, err)
	assert.Same(t, p.store, f.Document())
	require.NoError(t, f.Close())
	p.AssertExpectations(t)
}

func TestNewFactory_Errors(t *testing.T) {
	orig := newMongoProvider
	defer func() { newMongoProvider = orig }()

	newMongoProvider = func(ctx context.Context, cfg config.MongoConfig) (types.DocumentProvider, error) {
		return nil, errors.New("dial failed")
	}
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendMongo
	_, err := NewFactory(context.Background(), cfg)
	assert.ErrorContains(t, err, "dial failed")

	_, err = NewFactory(context.Background(), config.Config{Backend: "sqlite"})
	assert.ErrorContains(t, err, "unsupported backend")
}

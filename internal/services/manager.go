// Package services wires configuration into running components: the
// document store, the change broker, the stores, and the HTTP gateway.
package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/syntrixbase/daybook/internal/config"
	"github.com/syntrixbase/daybook/internal/confirm"
	"github.com/syntrixbase/daybook/internal/core/identity/authn"
	"github.com/syntrixbase/daybook/internal/core/pubsub"
	"github.com/syntrixbase/daybook/internal/core/pubsub/memory"
	"github.com/syntrixbase/daybook/internal/core/pubsub/nats"
	"github.com/syntrixbase/daybook/internal/core/storage"
	storageconfig "github.com/syntrixbase/daybook/internal/core/storage/config"
	"github.com/syntrixbase/daybook/internal/gateway/realtime"
	"github.com/syntrixbase/daybook/internal/gateway/rest"
	"github.com/syntrixbase/daybook/internal/server"
)

// Dependency injection for testing
var (
	newStorageFactory = func(ctx context.Context, cfg storageconfig.Config) (storage.StorageFactory, error) {
		return storage.NewFactory(ctx, cfg)
	}
	newNATSProvider = func(url, name string) pubsub.Provider {
		return nats.NewProvider(url, name)
	}
	newMemoryProvider = func() pubsub.Provider {
		return memory.New()
	}
)

type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	storageFactory storage.StorageFactory
	broker         pubsub.Provider
	publisher      pubsub.Publisher
	consumer       pubsub.Consumer

	tokens *authn.TokenService
	gates  *confirm.Registry
	stores rest.Stores
	api    *rest.Handler
	hub    *realtime.Hub
	server server.Service

	wg   sync.WaitGroup
	errs chan error
}

func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "services"),
		errs:   make(chan error, 1),
	}
}

// Stores returns the stores built by Init.
func (m *Manager) Stores() rest.Stores {
	return m.stores
}

// Tokens returns the owner token service built by Init.
func (m *Manager) Tokens() *authn.TokenService {
	return m.tokens
}

// Addr reports the HTTP listener address once started.
func (m *Manager) Addr() string {
	if m.server == nil {
		return ""
	}
	return m.server.Addr()
}

// Errors delivers the first fatal error of a background component.
func (m *Manager) Errors() <-chan error {
	return m.errs
}

func (m *Manager) fail(err error) {
	select {
	case m.errs <- err:
	default:
	}
}

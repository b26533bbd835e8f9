package services

import (
	"context"
	"fmt"

	"github.com/syntrixbase/daybook/internal/bucket"
	"github.com/syntrixbase/daybook/internal/calendar"
	"github.com/syntrixbase/daybook/internal/chat"
	"github.com/syntrixbase/daybook/internal/community"
	"github.com/syntrixbase/daybook/internal/confirm"
	"github.com/syntrixbase/daybook/internal/core/identity/authn"
	"github.com/syntrixbase/daybook/internal/core/pubsub"
	pubsubconfig "github.com/syntrixbase/daybook/internal/core/pubsub/config"
	"github.com/syntrixbase/daybook/internal/events"
	"github.com/syntrixbase/daybook/internal/filter"
	"github.com/syntrixbase/daybook/internal/finance"
	"github.com/syntrixbase/daybook/internal/gateway"
	"github.com/syntrixbase/daybook/internal/gateway/realtime"
	"github.com/syntrixbase/daybook/internal/gateway/rest"
	"github.com/syntrixbase/daybook/internal/server"
	"github.com/syntrixbase/daybook/internal/tasks"
)

// Init builds every component. Resources opened before a failure are
// released by Shutdown.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.initStorage(ctx); err != nil {
		return err
	}
	if err := m.initPubSub(ctx); err != nil {
		return err
	}
	if err := m.initStores(); err != nil {
		return err
	}
	return m.initGateway()
}

func (m *Manager) initStorage(ctx context.Context) error {
	factory, err := newStorageFactory(ctx, m.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	m.storageFactory = factory
	return nil
}

func (m *Manager) initPubSub(ctx context.Context) error {
	cfg := m.cfg.PubSub
	switch cfg.Provider {
	case pubsubconfig.ProviderNATS:
		m.broker = newNATSProvider(cfg.NATSURL, cfg.ClientName)
	default:
		m.broker = newMemoryProvider()
	}
	if c, ok := m.broker.(pubsub.Connectable); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect pubsub: %w", err)
		}
	}

	pubOpts := pubsub.PublisherOptions{SubjectPrefix: cfg.SubjectPrefix}
	pub, err := m.broker.NewPublisher(pubOpts)
	if err != nil {
		return fmt.Errorf("failed to create change publisher: %w", err)
	}
	m.publisher = pub

	consumer, err := m.broker.NewConsumer(pubsub.ConsumerOptions{
		FilterSubject:  pubOpts.FullSubject(realtime.ChangeSubject),
		ChannelBufSize: cfg.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create change consumer: %w", err)
	}
	m.consumer = consumer
	m.logger.Info("Change broker ready", "provider", cfg.Provider)
	return nil
}

func (m *Manager) initStores() error {
	var emitter *events.Emitter
	if m.cfg.Stores.EmitChanges {
		emitter = events.NewEmitter(m.publisher, m.logger)
	}
	filters, err := filter.NewCompiler()
	if err != nil {
		return fmt.Errorf("failed to create filter compiler: %w", err)
	}
	docs := m.storageFactory.Document()
	deps := bucket.Deps{Docs: docs, Emitter: emitter, Filters: filters, Logger: m.logger}

	if m.stores.Tasks, err = tasks.NewStore(deps); err != nil {
		return fmt.Errorf("failed to create task store: %w", err)
	}
	if m.stores.Events, err = calendar.NewStore(deps); err != nil {
		return fmt.Errorf("failed to create event store: %w", err)
	}
	if m.stores.Transactions, err = finance.NewTransactionStore(deps); err != nil {
		return fmt.Errorf("failed to create transaction store: %w", err)
	}
	if m.stores.Goals, err = finance.NewGoalStore(deps); err != nil {
		return fmt.Errorf("failed to create goal store: %w", err)
	}
	m.stores.Chat = chat.NewStore(docs, chat.WithEmitter(emitter), chat.WithLogger(m.logger))
	m.stores.Communities = community.NewStore(docs, community.WithEmitter(emitter), community.WithLogger(m.logger))
	m.gates = confirm.NewRegistry()
	return nil
}

func (m *Manager) initGateway() error {
	tokens, err := authn.NewTokenService(m.cfg.Identity.AuthN)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	m.tokens = tokens

	m.api = rest.NewHandler(m.stores, m.gates, tokens,
		rest.WithLogger(m.logger),
		rest.WithMaxBodySize(m.cfg.Gateway.MaxBodyBytes),
	)
	m.hub = realtime.NewHub(m.logger)
	rt := realtime.NewServer(m.hub, tokens, m.cfg.Gateway.Realtime, m.logger)

	m.server = server.New(m.cfg.Server, m.logger)
	gateway.New(m.api, rt).Mount(m.server)
	return nil
}

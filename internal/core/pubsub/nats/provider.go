// Package nats implements pubsub over core NATS subjects.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/syntrixbase/daybook/internal/core/pubsub"
)

var errNotConnected = errors.New("NATS not connected, call Connect first")

// natsConnection abstracts the nats.Conn for testing purposes
type natsConnection interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (unsubscriber, error)
	Close()
}

type unsubscriber interface {
	Unsubscribe() error
}

// natsConnectFunc is a function type for connecting to NATS (injectable for testing)
type natsConnectFunc func(url string, opts ...nats.Option) (natsConnection, error)

// defaultNatsConnect is the default implementation that uses nats.Connect
var defaultNatsConnect natsConnectFunc = func(url string, opts ...nats.Option) (natsConnection, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &conn{nc: nc}, nil
}

type conn struct {
	nc *nats.Conn
}

func (c *conn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *conn) Subscribe(subject string, cb nats.MsgHandler) (unsubscriber, error) {
	return c.nc.Subscribe(subject, cb)
}

func (c *conn) Close() {
	c.nc.Close()
}

// Provider implements pubsub.Provider using NATS.
type Provider struct {
	url         string
	name        string
	mu          sync.RWMutex
	nc          natsConnection
	natsConnect natsConnectFunc // injectable for testing
}

// Compile-time check that Provider implements pubsub.Provider
var _ pubsub.Provider = (*Provider)(nil)
var _ pubsub.Connectable = (*Provider)(nil)

// NewProvider creates a new NATS-based pubsub provider. Connect must be
// called before creating publishers or consumers.
func NewProvider(url, clientName string) *Provider {
	return &Provider{
		url:         url,
		name:        clientName,
		natsConnect: defaultNatsConnect,
	}
}

// Connect establishes the NATS connection.
func (p *Provider) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := []nats.Option{
		nats.Name(p.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected", "url", p.url)
		}),
	}

	nc, err := p.natsConnect(p.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.url, err)
	}

	p.mu.Lock()
	p.nc = nc
	p.mu.Unlock()

	slog.Info("Connected to NATS", "url", p.url)
	return nil
}

func (p *Provider) connection() (natsConnection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.nc == nil {
		return nil, errNotConnected
	}
	return p.nc, nil
}

// NewPublisher creates a new Publisher backed by NATS.
func (p *Provider) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	nc, err := p.connection()
	if err != nil {
		return nil, err
	}
	return &publisher{nc: nc, opts: opts}, nil
}

// NewConsumer creates a new Consumer backed by NATS.
func (p *Provider) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	nc, err := p.connection()
	if err != nil {
		return nil, err
	}
	return &consumer{nc: nc, opts: opts.Normalize()}, nil
}

// Close closes the NATS connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		slog.Info("Closing NATS connection...")
		p.nc.Close()
		p.nc = nil
	}
	return nil
}

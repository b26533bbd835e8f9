// Package memory provides an in-memory pubsub implementation for standalone mode.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/daybook/internal/core/pubsub"
)

// ErrEngineClosed is returned when operating on a closed engine.
var ErrEngineClosed = errors.New("engine is closed")

// Compile-time check that Engine implements pubsub.Provider
var _ pubsub.Provider = (*Engine)(nil)

// Engine routes messages between publishers and consumers of one process.
type Engine struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	closed atomic.Bool
}

type subscription struct {
	pattern string
	msgCh   chan pubsub.Message
	onDrop  func(subject string)
}

// New creates a new in-memory pubsub engine.
func New() *Engine {
	return &Engine{subs: make(map[uint64]*subscription)}
}

// NewPublisher creates a new in-memory Publisher.
func (e *Engine) NewPublisher(opts pubsub.PublisherOptions) (pubsub.Publisher, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &publisher{engine: e, opts: opts}, nil
}

// NewConsumer creates a new in-memory Consumer.
func (e *Engine) NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error) {
	if e.IsClosed() {
		return nil, ErrEngineClosed
	}
	return &consumer{engine: e, opts: opts.Normalize()}, nil
}

// Close shuts down the engine and all subscriptions.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, sub := range e.subs {
		close(sub.msgCh)
		delete(e.subs, id)
	}
	return nil
}

// IsClosed returns true if the engine is closed.
func (e *Engine) IsClosed() bool {
	return e.closed.Load()
}

// publish delivers to every matching subscription without blocking.
func (e *Engine) publish(subject string, data []byte) error {
	if e.IsClosed() {
		return ErrEngineClosed
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	now := time.Now()
	for _, sub := range e.subs {
		if !pubsub.MatchSubject(sub.pattern, subject) {
			continue
		}
		msg := &message{data: data, subject: subject, timestamp: now}
		select {
		case sub.msgCh <- msg:
		default:
			if sub.onDrop != nil {
				sub.onDrop(subject)
			}
		}
	}
	return nil
}

func (e *Engine) subscribe(opts pubsub.ConsumerOptions) (chan pubsub.Message, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.IsClosed() {
		return nil, nil, ErrEngineClosed
	}

	id := e.nextID
	e.nextID++
	sub := &subscription{
		pattern: opts.FilterSubject,
		msgCh:   make(chan pubsub.Message, opts.ChannelBufSize),
		onDrop:  opts.OnDrop,
	}
	e.subs[id] = sub

	unsubscribe := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.subs[id] == sub {
			delete(e.subs, id)
			close(sub.msgCh)
		}
	}
	return sub.msgCh, unsubscribe, nil
}

// Subscribers returns the number of live subscriptions.
func (e *Engine) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

type publisher struct {
	engine *Engine
	opts   pubsub.PublisherOptions
	closed atomic.Bool
}

// Publish sends a message to the specified subject.
func (p *publisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.closed.Load() {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	fullSubject := p.opts.FullSubject(subject)
	err := p.engine.publish(fullSubject, data)

	if p.opts.OnPublish != nil {
		p.opts.OnPublish(fullSubject, err, time.Since(start))
	}
	return err
}

// Close releases resources.
func (p *publisher) Close() error {
	p.closed.Store(true)
	return nil
}

type consumer struct {
	engine *Engine
	opts   pubsub.ConsumerOptions
}

// Subscribe registers the filter subject until ctx is done.
func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	msgCh, unsubscribe, err := c.engine.subscribe(c.opts)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return msgCh, nil
}

type message struct {
	data      []byte
	subject   string
	timestamp time.Time
}

func (m *message) Data() []byte         { return m.data }
func (m *message) Subject() string      { return m.subject }
func (m *message) Timestamp() time.Time { return m.timestamp }

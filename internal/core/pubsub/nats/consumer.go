package nats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/syntrixbase/daybook/internal/core/pubsub"
)

type consumer struct {
	nc   natsConnection
	opts pubsub.ConsumerOptions
}

// Subscribe bridges a NATS subscription to a channel until ctx is done.
func (c *consumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	msgCh := make(chan pubsub.Message, c.opts.ChannelBufSize)

	var (
		mu     sync.Mutex
		closed bool
	)
	sub, err := c.nc.Subscribe(c.opts.FilterSubject, func(m *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		msg := &message{data: m.Data, subject: m.Subject, timestamp: time.Now()}
		select {
		case msgCh <- msg:
		default:
			if c.opts.OnDrop != nil {
				c.opts.OnDrop(m.Subject)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			slog.Debug("NATS unsubscribe failed", "subject", c.opts.FilterSubject, "error", err)
		}
		mu.Lock()
		closed = true
		close(msgCh)
		mu.Unlock()
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

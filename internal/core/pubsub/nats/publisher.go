package nats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/daybook/internal/core/pubsub"
)

type publisher struct {
	nc     natsConnection
	opts   pubsub.PublisherOptions
	closed atomic.Bool
}

// Publish sends a message to the specified subject.
func (p *publisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.closed.Load() {
		return errNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	fullSubject := p.opts.FullSubject(subject)
	err := p.nc.Publish(fullSubject, data)

	if p.opts.OnPublish != nil {
		p.opts.OnPublish(fullSubject, err, time.Since(start))
	}
	return err
}

// Close releases resources. The connection belongs to the provider.
func (p *publisher) Close() error {
	p.closed.Store(true)
	return nil
}

// Package pubsub provides a generic pub/sub abstraction used to fan out
// change events from the stores to realtime subscribers.
package pubsub

import (
	"context"
	"time"
)

// Message is a delivered message. Delivery is at-most-once.
type Message interface {
	// Data returns the raw message payload.
	Data() []byte

	// Subject returns the message subject.
	Subject() string

	// Timestamp returns when the message was received.
	Timestamp() time.Time
}

// Publisher publishes messages.
type Publisher interface {
	// Publish sends a message to the specified subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close releases resources.
	Close() error
}

// Consumer consumes messages matching its filter subject.
type Consumer interface {
	// Subscribe starts consuming messages and returns a channel.
	// The channel is closed when the context is cancelled or the provider closes.
	Subscribe(ctx context.Context) (<-chan Message, error)
}

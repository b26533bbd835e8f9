package pubsub

import "time"

// PublisherOptions configures publisher behavior.
type PublisherOptions struct {
	// SubjectPrefix is prepended to all subjects.
	SubjectPrefix string

	// OnPublish is called after each publish attempt (for metrics).
	OnPublish func(subject string, err error, latency time.Duration)
}

// ConsumerOptions configures consumer behavior.
type ConsumerOptions struct {
	// FilterSubject filters messages by subject pattern.
	// Supports "*" for one token and a trailing ">" for the rest.
	FilterSubject string

	// ChannelBufSize is the buffer size for the message channel.
	// A full buffer drops new messages instead of blocking publishers.
	ChannelBufSize int

	// OnDrop is called for every message dropped because the buffer was full.
	OnDrop func(subject string)
}

// DefaultConsumerOptions returns ConsumerOptions with sensible defaults.
func DefaultConsumerOptions() ConsumerOptions {
	return ConsumerOptions{
		FilterSubject:  ">",
		ChannelBufSize: 100,
	}
}

// Normalize fills zero fields with defaults.
func (o ConsumerOptions) Normalize() ConsumerOptions {
	d := DefaultConsumerOptions()
	if o.FilterSubject == "" {
		o.FilterSubject = d.FilterSubject
	}
	if o.ChannelBufSize <= 0 {
		o.ChannelBufSize = d.ChannelBufSize
	}
	return o
}

// FullSubject applies the publisher prefix.
func (o PublisherOptions) FullSubject(subject string) string {
	if o.SubjectPrefix == "" {
		return subject
	}
	return o.SubjectPrefix + "." + subject
}

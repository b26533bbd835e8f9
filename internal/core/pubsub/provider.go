package pubsub

import (
	"context"
	"io"
	"strings"
)

// Provider provides factory methods for creating publishers and consumers.
// This interface abstracts the underlying message broker (NATS, in-memory)
// allowing different implementations to be swapped transparently.
type Provider interface {
	io.Closer

	// NewPublisher creates a new Publisher with the given options.
	NewPublisher(opts PublisherOptions) (Publisher, error)

	// NewConsumer creates a new Consumer with the given options.
	NewConsumer(opts ConsumerOptions) (Consumer, error)
}

// Connectable is an optional interface for providers that need to establish
// a connection before they can be used.
type Connectable interface {
	Connect(ctx context.Context) error
}

// MatchSubject checks if a subject matches a pattern.
// Supports NATS-style wildcards:
// - "*" matches a single token
// - ">" matches one or more tokens (must be last)
func MatchSubject(pattern, subject string) bool {
	if pattern == "" || subject == "" {
		return false
	}

	patternParts := strings.Split(pattern, ".")
	subjectParts := strings.Split(subject, ".")

	for i, p := range patternParts {
		if p == ">" {
			// ">" must match at least one token
			return i < len(subjectParts)
		}
		if i >= len(subjectParts) {
			return false
		}
		if p != "*" && p != subjectParts[i] {
			return false
		}
	}
	return len(patternParts) == len(subjectParts)
}

// SubjectToken makes an id safe to use as one subject token.
func SubjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
}

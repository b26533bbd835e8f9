// Package events defines the change records published after every
// confirmed store mutation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/daybook/internal/core/pubsub"
	"github.com/syntrixbase/daybook/internal/metrics"
)

// SubjectRoot is the first token of every change subject.
const SubjectRoot = "changes"

// ChangeType is the kind of mutation.
type ChangeType string

const (
	Created ChangeType = "created"
	Updated ChangeType = "updated"
	Deleted ChangeType = "deleted"
)

// IsValid checks if the change type is a known valid type.
func (c ChangeType) IsValid() bool {
	switch c {
	case Created, Updated, Deleted:
		return true
	default:
		return false
	}
}

// Change describes one confirmed mutation.
type Change struct {
	Type   ChangeType `json:"type"`
	Entity string     `json:"entity"`
	// Scope is the owner id for personal data and the community id for
	// community data.
	Scope     string          `json:"scope"`
	Date      string          `json:"date,omitempty"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Subject returns changes.{entity}.{scope}.
func (c Change) Subject() string {
	return Subject(c.Entity, c.Scope)
}

// Subject builds the subject for an entity and scope.
func Subject(entity, scope string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectRoot, pubsub.SubjectToken(entity), pubsub.SubjectToken(scope))
}

// ScopePattern matches every change for one scope.
func ScopePattern(scope string) string {
	return fmt.Sprintf("%s.*.%s", SubjectRoot, pubsub.SubjectToken(scope))
}

// Decode parses a published change.
func Decode(data []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if !c.Type.IsValid() {
		return Change{}, fmt.Errorf("decode change: unknown type %q", c.Type)
	}
	return c, nil
}

// Emitter publishes changes. A nil *Emitter drops everything.
type Emitter struct {
	pub    pubsub.Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewEmitter(pub pubsub.Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{pub: pub, logger: logger.With("component", "events"), now: time.Now}
}

// Emit publishes a change with data encoded as JSON. Failures are logged;
// the mutation already happened and must not be reported as failed.
func (e *Emitter) Emit(ctx context.Context, typ ChangeType, entity, scope, date, id string, data interface{}) {
	if e == nil || e.pub == nil {
		return
	}

	c := Change{
		Type:      typ,
		Entity:    entity,
		Scope:     scope,
		Date:      date,
		ID:        id,
		Timestamp: e.now().UnixMilli(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			e.logger.Warn("Failed to encode change payload", "entity", entity, "id", id, "error", err)
			return
		}
		c.Data = raw
	}

	payload, err := json.Marshal(c)
	if err != nil {
		e.logger.Warn("Failed to encode change", "entity", entity, "id", id, "error", err)
		return
	}
	err = e.pub.Publish(context.WithoutCancel(ctx), c.Subject(), payload)
	metrics.ChangesPublished.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		e.logger.Warn("Failed to publish change", "subject", c.Subject(), "error", err)
	}
}

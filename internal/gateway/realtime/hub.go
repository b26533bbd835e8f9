package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/syntrixbase/daybook/internal/core/pubsub"
	"github.com/syntrixbase/daybook/internal/events"
	"github.com/syntrixbase/daybook/internal/metrics"
)

// ChangeSubject matches every published change.
const ChangeSubject = events.SubjectRoot + ".>"

// Hub maintains the set of active clients and forwards changes to the
// clients whose owner or subscribed communities match the change scope.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	done    chan struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		done:    make(chan struct{}),
		logger:  logger.With("component", "realtime"),
	}
}

// Register adds a client. It fails once the hub has shut down.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.RealtimeClients.Inc()
	return true
}

// Unregister removes a client and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.RealtimeClients.Dec()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dispatch queues a change on every interested client. A client whose
// queue is full misses the change.
func (h *Hub) Dispatch(change events.Change) {
	msg := BaseMessage{Type: TypeChange, Payload: mustMarshal(ChangePayload{Change: change})}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(change.Scope) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			metrics.RealtimeDropped.Inc()
			h.logger.Warn("Dropped change for slow client", "owner", c.ownerID(), "entity", change.Entity)
		}
	}
}

// Start subscribes to changes and forwards them in the background until
// ctx is done or the consumer's channel closes. Every client is then
// disconnected.
func (h *Hub) Start(ctx context.Context, consumer pubsub.Consumer) error {
	msgs, err := consumer.Subscribe(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("Started forwarding changes", "subject", ChangeSubject)
	go h.forward(ctx, msgs)
	return nil
}

// Done is closed once forwarding stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) forward(ctx context.Context, msgs <-chan pubsub.Message) {
	defer close(h.done)
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				h.logger.Info("Change stream closed")
				return
			}
			change, err := events.Decode(msg.Data())
			if err != nil {
				h.logger.Warn("Skipping undecodable change", "subject", msg.Subject(), "error", err)
				continue
			}
			h.Dispatch(change)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		metrics.RealtimeClients.Dec()
	}
}

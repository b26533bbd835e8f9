// Package confirm implements the single-slot confirmation gate that sits in
// front of destructive actions.
package confirm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/daybook/internal/metrics"
)

// ErrStaleTicket is returned when resolving a request that was superseded
// or already resolved.
var ErrStaleTicket = errors.New("confirmation ticket is stale")

const (
	outcomeConfirmed  = "confirmed"
	outcomeCanceled   = "canceled"
	outcomeSuperseded = "superseded"
)

// Ticket identifies one request.
type Ticket string

// Request is a yes/no prompt. OnConfirm runs on confirmation and its error is
// returned to the caller of Confirm; OnCancel runs on cancellation. Either
// may be nil.
type Request struct {
	Title     string
	Message   string
	OnConfirm func(ctx context.Context) error
	OnCancel  func()
}

// Prompt is the open request as shown to the user.
type Prompt struct {
	Ticket    Ticket    `json:"ticket"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

type pending struct {
	prompt Prompt
	req    Request
}

// Gate holds at most one open request. A new request replaces the open one
// without running its handlers.
type Gate struct {
	mu      sync.Mutex
	current *pending
	now     func() time.Time
	newID   func() string
}

func NewGate() *Gate {
	return &Gate{now: time.Now, newID: uuid.NewString}
}

// Request opens req and returns its ticket.
func (g *Gate) Request(req Request) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil {
		metrics.ConfirmationsResolved.WithLabelValues(outcomeSuperseded).Inc()
	}
	p := &pending{
		prompt: Prompt{
			Ticket:    Ticket(g.newID()),
			Title:     req.Title,
			Message:   req.Message,
			CreatedAt: g.now(),
		},
		req: req,
	}
	g.current = p
	metrics.ConfirmationsRequested.Inc()
	return p.prompt.Ticket
}

// Confirm closes the request named by ticket and runs its OnConfirm.
func (g *Gate) Confirm(ctx context.Context, ticket Ticket) error {
	req, err := g.take(ticket, outcomeConfirmed)
	if err != nil {
		return err
	}
	if req.OnConfirm == nil {
		return nil
	}
	return req.OnConfirm(ctx)
}

// Cancel closes the request named by ticket and runs its OnCancel.
func (g *Gate) Cancel(ticket Ticket) error {
	req, err := g.take(ticket, outcomeCanceled)
	if err != nil {
		return err
	}
	if req.OnCancel != nil {
		req.OnCancel()
	}
	return nil
}

// Pending returns the open request, if any.
func (g *Gate) Pending() (Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return Prompt{}, false
	}
	return g.current.prompt, true
}

// take closes the open request before its handler runs, so handlers may
// open a follow-up request.
func (g *Gate) take(ticket Ticket, outcome string) (Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.current.prompt.Ticket != ticket {
		return Request{}, ErrStaleTicket
	}
	req := g.current.req
	g.current = nil
	metrics.ConfirmationsResolved.WithLabelValues(outcome).Inc()
	return req, nil
}

// Registry keeps one gate per owner.
type Registry struct {
	mu    sync.Mutex
	gates map[string]*Gate
}

func NewRegistry() *Registry {
	return &Registry{gates: make(map[string]*Gate)}
}

// Gate returns the owner's gate, creating it on first use.
func (r *Registry) Gate(owner string) *Gate {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[owner]
	if !ok {
		g = NewGate()
		r.gates[owner] = g
	}
	return g
}

// Forget drops the owner's gate and its open request without running handlers.
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gates, owner)
}

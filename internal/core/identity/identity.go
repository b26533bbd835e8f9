// Package identity models the owner whose data every store action touches.
// The identity provider itself is external; this package only carries its
// result and notifies watchers when it changes.
package identity

import (
	"context"
	"sync"

	"github.com/syntrixbase/daybook/internal/ctxkeys"
	"github.com/syntrixbase/daybook/pkg/model"
)

// Owner is the authenticated user as reported by the identity provider.
type Owner struct {
	ID                 string   `json:"uid"`
	DisplayName        string   `json:"displayName,omitempty"`
	Email              string   `json:"email,omitempty"`
	PhotoURL           string   `json:"photoURL,omitempty"`
	Role               string   `json:"role,omitempty"`
	JoinedCommunities  []string `json:"joinedCommunities,omitempty"`
	CreatedCommunities []string `json:"createdCommunities,omitempty"`
}

// RequireID returns the owner id or ErrNotAuthenticated.
func RequireID(o *Owner) (string, error) {
	if o == nil || o.ID == "" {
		return "", model.ErrNotAuthenticated
	}
	return o.ID, nil
}

// WithOwner stores the owner on the context.
func WithOwner(ctx context.Context, o *Owner) context.Context {
	return context.WithValue(ctx, ctxkeys.KeyOwner, o)
}

// FromContext returns the owner placed by the auth middleware.
func FromContext(ctx context.Context) (*Owner, error) {
	o, _ := ctx.Value(ctxkeys.KeyOwner).(*Owner)
	if _, err := RequireID(o); err != nil {
		return nil, err
	}
	return o, nil
}

// Session holds the current owner of a process and fans out changes.
type Session struct {
	mu       sync.RWMutex
	current  *Owner
	watchers map[int]chan *Owner
	nextID   int
}

func NewSession() *Session {
	return &Session{watchers: make(map[int]chan *Owner)}
}

// Current returns the signed-in owner or ErrNotAuthenticated.
func (s *Session) Current() (*Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := RequireID(s.current); err != nil {
		return nil, err
	}
	o := *s.current
	return &o, nil
}

// Set replaces the current owner and notifies watchers.
func (s *Session) Set(o *Owner) {
	var copied *Owner
	if o != nil {
		c := *o
		copied = &c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = copied
	for _, ch := range s.watchers {
		// keep only the latest value for slow watchers
		select {
		case <-ch:
		default:
		}
		ch <- copied
	}
}

// Clear signs the owner out.
func (s *Session) Clear() {
	s.Set(nil)
}

// Watch returns a channel receiving the owner (nil on sign-out) after every
// change, and a cancel func that closes it.
func (s *Session) Watch() (<-chan *Owner, func()) {
	ch := make(chan *Owner, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

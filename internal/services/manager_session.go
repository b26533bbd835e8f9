package services

import (
	"context"
	"errors"

	"github.com/syntrixbase/daybook/internal/core/identity"
)

// BindSession follows sess and signs the previous owner out whenever the
// session's owner changes or is cleared, the same way the logout route does.
// It stops when ctx is done. Call it after Init.
func (m *Manager) BindSession(ctx context.Context, sess *identity.Session) error {
	if m.api == nil {
		return errors.New("manager not initialized")
	}

	updates, cancel := sess.Watch()
	current := ""
	if o, err := sess.Current(); err == nil {
		current = o.ID
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case o, ok := <-updates:
				if !ok {
					return
				}
				next := ""
				if o != nil {
					next = o.ID
				}
				if next == current {
					continue
				}
				m.logger.Debug("Session owner changed", "from", current, "to", next)
				m.api.SignOut(current)
				current = next
			}
		}
	}()
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
)

// Start runs the realtime hub and the HTTP server in the background and
// returns once the listener is bound. Later fatal server errors are
// reported on Errors.
func (m *Manager) Start(bgCtx context.Context) error {
	if m.server == nil || m.hub == nil {
		return errors.New("services not initialized")
	}
	if err := m.hub.Start(bgCtx, m.consumer); err != nil {
		return fmt.Errorf("failed to start realtime hub: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.Start(bgCtx); err != nil {
			m.logger.Error("HTTP server stopped", "error", err)
			m.fail(err)
		}
	}()

	select {
	case <-m.server.Ready():
		m.logger.Info("Daybook is serving", "addr", m.server.Addr())
		return nil
	case err := <-m.errs:
		return err
	case <-bgCtx.Done():
		return bgCtx.Err()
	}
}

package services

import (
	"context"
	"errors"
)

// Shutdown stops the HTTP server, waits for background work, and closes
// the broker and the document store. Cancel the context given to Start
// first so the hub disconnects its clients.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error

	if m.server != nil {
		if err := m.server.Stop(ctx); err != nil {
			m.logger.Error("Error shutting down HTTP server", "error", err)
			errs = append(errs, err)
		}
	}

	m.logger.Info("Waiting for background tasks to finish...")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Info("Background tasks finished")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for background tasks")
		errs = append(errs, ctx.Err())
	}

	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.broker != nil {
		if err := m.broker.Close(); err != nil {
			m.logger.Error("Error closing change broker", "error", err)
			errs = append(errs, err)
		}
	}
	if m.storageFactory != nil {
		if err := m.storageFactory.Close(); err != nil {
			m.logger.Error("Error closing storage", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

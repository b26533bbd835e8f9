// Package server hosts the HTTP listener shared by the REST and realtime
// gateways.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
)

// Service is the network layer.
type Service interface {
	// Start listens and blocks until a fatal error occurs or ctx is canceled.
	Start(ctx context.Context) error

	// Stop drains active connections or gives up when ctx expires.
	Stop(ctx context.Context) error

	// RegisterHTTPHandler must be called before Start.
	RegisterHTTPHandler(pattern string, handler http.Handler)

	// Addr reports the bound address once Start is listening.
	Addr() string

	// Ready is closed once the listener is bound.
	Ready() <-chan struct{}
}

type serverImpl struct {
	cfg    Config
	logger *slog.Logger

	httpMux    *http.ServeMux
	httpServer *http.Server

	mu       sync.Mutex
	started  bool
	addr     string
	ready    chan struct{}
	listenFn func(network, address string) (net.Listener, error)
}

// New creates a new Service instance.
func New(cfg Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &serverImpl{
		cfg:      cfg,
		logger:   logger.With("component", "server"),
		httpMux:  http.NewServeMux(),
		ready:    make(chan struct{}),
		listenFn: net.Listen,
	}
}

func (s *serverImpl) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	s.started = true

	s.httpServer = &http.Server{
		Handler:      s.wrapMiddleware(s.httpMux),
		ReadTimeout:  s.cfg.HTTPReadTimeout,
		WriteTimeout: s.cfg.HTTPWriteTimeout,
		IdleTimeout:  s.cfg.HTTPIdleTimeout,
	}
	ln, err := s.listenFn("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPPort))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("http listen: %w", err)
	}
	s.addr = ln.Addr().String()
	close(s.ready)
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (s *serverImpl) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	return nil
}

func (s *serverImpl) RegisterHTTPHandler(pattern string, handler http.Handler) {
	s.httpMux.Handle(pattern, handler)
}

func (s *serverImpl) Ready() <-chan struct{} {
	return s.ready
}

func (s *serverImpl) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

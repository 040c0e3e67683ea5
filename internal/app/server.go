package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"httpcore/internal/config"
	"httpcore/internal/core"
	"httpcore/internal/management"
	"httpcore/internal/replay"
)

// Backend is the connection engine behind the server. Both backends
// satisfy it.
type Backend interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Addr() net.Addr
	ActiveConns() int
}

// Server ties a connection backend, the replay store, and the
// management API together.
type Server struct {
	config  *config.Config
	backend Backend
	store   replay.Store
	mgmt    *management.API
	logger  *slog.Logger
}

// NewServer creates a new server from configuration
func NewServer(cfg *config.Config, handler core.Handler, logger *slog.Logger) (*Server, error) {
	builder := NewBuilder(cfg, handler, logger)
	return builder.Build()
}

// Start starts the server
//
// This method is non-blocking and returns once the backend is listening.
// The server keeps running in the background until Stop() is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting server",
		"backend", s.config.Server.Backend,
		"host", s.config.Server.Host,
		"port", s.config.Server.Port,
	)
	if err := s.backend.Start(ctx); err != nil {
		return fmt.Errorf("starting backend: %w", err)
	}

	if err := s.mgmt.Start(ctx); err != nil {
		stopCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s.backend.Stop(stopCtx)
		return fmt.Errorf("starting management API: %w", err)
	}

	s.logger.Info("Server started successfully", "addr", s.backend.Addr().String())
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	var wg sync.WaitGroup
	var errs []error
	errMu := sync.Mutex{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.backend.Stop(ctx); err != nil {
			errMu.Lock()
			errs = append(errs, fmt.Errorf("stopping backend: %w", err))
			errMu.Unlock()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.mgmt.Stop(ctx); err != nil {
			errMu.Lock()
			errs = append(errs, fmt.Errorf("stopping management API: %w", err))
			errMu.Unlock()
		}
	}()

	wg.Wait()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing replay store: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	s.logger.Info("Server stopped successfully")
	return nil
}

// Addr returns the backend's bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.backend.Addr()
}

// ActiveConns returns the number of currently open connections.
func (s *Server) ActiveConns() int {
	return s.backend.ActiveConns()
}

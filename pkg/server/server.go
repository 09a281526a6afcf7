package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/filefighter/ftpfighter/internal/logger"
	"github.com/filefighter/ftpfighter/pkg/adapter"
	"github.com/filefighter/ftpfighter/pkg/backend"
	"github.com/filefighter/ftpfighter/pkg/journal"
	"github.com/filefighter/ftpfighter/pkg/metrics"
)

// DefaultShutdownTimeout bounds the Stop calls issued on shutdown when no
// timeout is configured.
const DefaultShutdownTimeout = 30 * time.Second

// Server manages the lifecycle of the protocol adapters that share one
// backend, the optional metrics server and the journal.
//
// Lifecycle:
//  1. Creation: New() with the backend factory, authenticator and journal
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters and the metrics server
//  4. Shutdown: context cancellation stops adapters in reverse order, then
//     the metrics server, then closes the journal
//
// Thread safety:
// AddAdapter() may be called concurrently before Serve(). Serve() may only
// be called once.
type Server struct {
	factory backend.Factory
	auth    backend.Authenticator
	journal journal.Store

	metricsServer   *metrics.Server
	shutdownTimeout time.Duration

	adapters []adapter.Adapter

	// mu protects adapters and served
	mu     sync.Mutex
	served bool
}

// Config holds the shared collaborators of a Server.
type Config struct {
	// Factory builds one FileSystem per FTP connection (required)
	Factory backend.Factory

	// Authenticator logs users in (required)
	Authenticator backend.Authenticator

	// Journal is closed after every adapter stopped. nil means no journal.
	Journal journal.Store

	// MetricsServer is started alongside the adapters. nil disables it.
	MetricsServer *metrics.Server

	// ShutdownTimeout bounds the Stop calls. Default: DefaultShutdownTimeout
	ShutdownTimeout time.Duration
}

// New creates a Server in a stopped state.
//
// Panics if the factory or the authenticator is nil (programmer error).
func New(cfg Config) *Server {
	if cfg.Factory == nil {
		panic("backend factory cannot be nil")
	}
	if cfg.Authenticator == nil {
		panic("authenticator cannot be nil")
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.NewNoop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &Server{
		factory:         cfg.Factory,
		auth:            cfg.Authenticator,
		journal:         cfg.Journal,
		metricsServer:   cfg.MetricsServer,
		shutdownTimeout: cfg.ShutdownTimeout,
		adapters:        make([]adapter.Adapter, 0, 1),
	}
}

// AddAdapter injects the shared backend into a and registers it.
//
// Returns an error if another adapter already serves the same protocol or
// port. Panics if a is nil or Serve() has already been called.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetBackend(s.factory, s.auth)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Returns:
//   - ctx.Err() if shutdown was triggered by context cancellation
//   - error if an adapter failed, or if no adapter is registered
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting FTPFighter with %d adapter(s)", len(adapters))

	// Buffered so failing goroutines never block.
	errChan := make(chan adapterError, len(adapters)+1)

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	var wg sync.WaitGroup

	if s.metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.metricsServer.Start(serveCtx); err != nil {
				errChan <- adapterError{protocol: "metrics", err: err}
			}
		}()
	}

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(serveCtx); err != nil {
				if !errors.Is(err, context.Canceled) && serveCtx.Err() == nil {
					errChan <- adapterError{protocol: protocol, err: err}
					return
				}
				logger.Warn("%s adapter stopped: %v", protocol, err)
				return
			}
			logger.Info("%s adapter stopped", protocol)
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("%s failed: %v - initiating shutdown", adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	s.stopAllAdapters(adapters)
	cancelServe()

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	if err := s.journal.Close(); err != nil {
		logger.Error("Failed to close journal: %v", err)
	}

	logger.Info("FTPFighter stopped")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters stops adapters in reverse registration order, all bounded
// by one shutdown timeout.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		}
	}
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

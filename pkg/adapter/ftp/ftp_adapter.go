package ftp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/filefighter/ftpfighter/internal/logger"
	"github.com/filefighter/ftpfighter/internal/ratelimiter"
	"github.com/filefighter/ftpfighter/pkg/backend"
	"github.com/filefighter/ftpfighter/pkg/journal"
	"github.com/filefighter/ftpfighter/pkg/metrics"
)

// drainPollInterval is how often shutdown checks for finished transfers.
const drainPollInterval = 50 * time.Millisecond

// FTPAdapter implements the adapter.Adapter interface for FTP.
//
// The protocol itself (control connection parsing, passive data
// connections, listings) is handled by ftpserverlib. The adapter owns the
// connection lifecycle around it:
//   - Connection limiting with a semaphore
//   - One context per connection, derived from shutdownCtx, that aborts
//     remote calls when the client leaves
//   - A fresh backend.FileSystem per authenticated connection
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. Wait for running transfers to finish (up to ShutdownTimeout)
//  4. shutdownCtx cancelled and every control connection closed
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is idempotent.
type FTPAdapter struct {
	config FTPConfig
	port   int

	server *ftpserver.FtpServer

	// factory and auth are injected by SetBackend before Serve.
	factory backend.Factory
	auth    backend.Authenticator

	metrics metrics.FTPMetrics
	journal journal.Store

	// mu orders Listen against shutdown so a Stop that races Serve never
	// leaves a listener open.
	mu        sync.Mutex
	listening bool

	shutdownOnce sync.Once
	shutdown     chan struct{}

	drainOnce sync.Once
	drainErr  error

	connCount atomic.Int32

	// transfers counts open data transfers. Shutdown waits for it to drop
	// to zero.
	transfers atomic.Int32

	// connSemaphore is nil if MaxConnections is 0 (unlimited).
	connSemaphore chan struct{}

	// logins is nil if LoginRatePerMinute is 0 (unlimited).
	logins *ratelimiter.KeyedLimiter

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps the engine's client id (uint32) to *connection.
	activeConnections sync.Map
}

// New creates a new FTPAdapter in a stopped state.
//
// Zero values in config are replaced with defaults. A nil ftpMetrics or
// store disables metrics or the journal. Call SetBackend() before Serve().
func New(config FTPConfig, ftpMetrics metrics.FTPMetrics, store journal.Store) (*FTPAdapter, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid FTP config: %w", err)
	}
	port, _ := config.port()

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("FTP connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("FTP connection limit: unlimited")
	}

	if ftpMetrics == nil {
		ftpMetrics = metrics.NewNoopFTPMetrics()
	}
	if store == nil {
		store = journal.NewNoop()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	s := &FTPAdapter{
		config:         config,
		port:           port,
		metrics:        ftpMetrics,
		journal:        store,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		logins:         ratelimiter.New(uint(config.LoginRatePerMinute), uint(config.LoginBurst)),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
	s.server = ftpserver.NewFtpServer(&mainDriver{adapter: s})
	return s, nil
}

// SetBackend injects the per-connection FileSystem factory and the
// authenticator. Called exactly once before Serve().
func (s *FTPAdapter) SetBackend(factory backend.Factory, auth backend.Authenticator) {
	s.factory = factory
	s.auth = auth
	logger.Debug("FTP backend configured")
}

// Serve starts the FTP server and blocks until the context is cancelled,
// Stop is called, or the engine fails.
//
// Returns nil on graceful shutdown and an error if the listener cannot be
// opened, the engine stops unexpectedly, or transfers had to be cut off.
func (s *FTPAdapter) Serve(ctx context.Context) error {
	if s.factory == nil || s.auth == nil {
		return errors.New("FTP adapter has no backend: call SetBackend before Serve")
	}

	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		return nil
	default:
	}
	if err := s.server.Listen(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create FTP listener on %s: %w", s.config.ListenAddr, err)
	}
	s.listening = true
	s.mu.Unlock()

	logger.Info("FTP server listening on %s (passive ports %d-%d)",
		s.config.ListenAddr, s.config.PassivePortStart, s.config.PassivePortEnd)
	logger.Debug("FTP config: max_connections=%d idle_timeout=%v connection_timeout=%v",
		s.config.MaxConnections, s.config.IdleTimeout, s.config.ConnectionTimeout)

	served := make(chan error, 1)
	go func() {
		served <- s.server.Serve()
	}()

	select {
	case <-ctx.Done():
		logger.Info("FTP shutdown signal received: %v", ctx.Err())
		s.initiateShutdown()
		return s.gracefulShutdown()

	case <-s.shutdown:
		return s.gracefulShutdown()

	case err := <-served:
		select {
		case <-s.shutdown:
			return s.gracefulShutdown()
		default:
		}
		s.initiateShutdown()
		_ = s.gracefulShutdown()
		if err == nil {
			err = errors.New("listener closed")
		}
		return fmt.Errorf("FTP server stopped: %w", err)
	}
}

// initiateShutdown closes the listener. Safe to call multiple times.
func (s *FTPAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("FTP shutdown initiated")

		s.mu.Lock()
		close(s.shutdown)
		if s.listening {
			if err := s.server.Stop(); err != nil {
				logger.Debug("Error closing FTP listener: %v", err)
			}
		}
		s.mu.Unlock()
	})
}

// gracefulShutdown waits for open transfers, then cancels remaining remote
// calls and closes every control connection. Concurrent callers share the
// result of the first call.
func (s *FTPAdapter) gracefulShutdown() error {
	s.drainOnce.Do(func() {
		s.drainErr = s.drain()
	})
	return s.drainErr
}

func (s *FTPAdapter) drain() error {
	logger.Info("FTP graceful shutdown: waiting for %d transfer(s) on %d connection(s) (timeout: %v)",
		s.transfers.Load(), s.connCount.Load(), s.config.ShutdownTimeout)

	deadline := time.NewTimer(s.config.ShutdownTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	var err error
wait:
	for s.transfers.Load() > 0 {
		select {
		case <-deadline.C:
			remaining := s.transfers.Load()
			logger.Warn("FTP shutdown timeout exceeded: %d transfer(s) still running after %v - forcing closure",
				remaining, s.config.ShutdownTimeout)
			err = fmt.Errorf("FTP shutdown timeout: %d transfers aborted", remaining)
			break wait
		case <-ticker.C:
		}
	}

	s.cancelRequests()
	s.forceCloseConnections()

	if err == nil {
		logger.Info("FTP graceful shutdown complete")
	}
	return err
}

// forceCloseConnections closes every tracked control connection. The engine
// then calls ClientDisconnected, which unregisters them.
func (s *FTPAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		conn := value.(*connection)
		if err := conn.closer.Close(); err != nil {
			logger.Debug("Error closing FTP connection %d from %s: %v", conn.id, conn.remote, err)
		} else {
			closedCount++
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Closed %d FTP connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown of the FTP server and waits for it to
// complete, or for ctx to be cancelled.
func (s *FTPAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan error, 1)
	go func() {
		done <- s.gracefulShutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Warn("FTP shutdown context cancelled: %d connection(s) still active: %v",
			s.connCount.Load(), ctx.Err())
		return ctx.Err()
	}
}

// GetActiveConnections returns the current number of control connections.
func (s *FTPAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the control connection port.
func (s *FTPAdapter) Port() int {
	return s.port
}

// Protocol returns "FTP".
func (s *FTPAdapter) Protocol() string {
	return "FTP"
}

package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/filefighter/ftpfighter/internal/logger"
)

// connection is one control connection known to the adapter.
type connection struct {
	id     uint32
	remote net.Addr
	closer io.Closer
	ctx    context.Context
	cancel context.CancelFunc
	since  time.Time
}

// mainDriver connects the engine to the adapter.
type mainDriver struct {
	adapter *FTPAdapter
}

var _ ftpserver.MainDriver = (*mainDriver)(nil)

func (d *mainDriver) GetSettings() (*ftpserver.Settings, error) {
	cfg := d.adapter.config
	return &ftpserver.Settings{
		ListenAddr: cfg.ListenAddr,
		PublicHost: cfg.PublicHost,
		PassiveTransferPortRange: &ftpserver.PortRange{
			Start: cfg.PassivePortStart,
			End:   cfg.PassivePortEnd,
		},
		IdleTimeout:       int(cfg.IdleTimeout / time.Second),
		ConnectionTimeout: int(cfg.ConnectionTimeout / time.Second),
	}, nil
}

func (d *mainDriver) ClientConnected(cc ftpserver.ClientContext) (string, error) {
	return d.adapter.accept(cc.ID(), cc.RemoteAddr(), cc)
}

func (d *mainDriver) ClientDisconnected(cc ftpserver.ClientContext) {
	d.adapter.release(cc.ID())
}

func (d *mainDriver) AuthUser(cc ftpserver.ClientContext, user, pass string) (ftpserver.ClientDriver, error) {
	return d.adapter.login(cc.ID(), user, pass)
}

func (d *mainDriver) GetTLSConfig() (*tls.Config, error) {
	return nil, errTLSNotConfigured
}

// accept registers a new control connection and returns the greeting.
func (s *FTPAdapter) accept(id uint32, remote net.Addr, closer io.Closer) (string, error) {
	select {
	case <-s.shutdown:
		s.metrics.RecordConnectionRejected()
		return "", errShuttingDown
	default:
	}

	if s.connSemaphore != nil {
		select {
		case s.connSemaphore <- struct{}{}:
		default:
			s.metrics.RecordConnectionRejected()
			logger.Warn("FTP connection from %s rejected: limit of %d reached", remote, s.config.MaxConnections)
			return "", errTooManyConnections
		}
	}

	ctx, cancel := context.WithCancel(s.shutdownCtx)
	s.activeConnections.Store(id, &connection{
		id:     id,
		remote: remote,
		closer: closer,
		ctx:    ctx,
		cancel: cancel,
		since:  time.Now(),
	})

	current := s.connCount.Add(1)
	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveConnections(current)
	logger.Debug("FTP connection %d accepted from %s (active: %d)", id, remote, current)

	return s.config.Banner, nil
}

// release unregisters a control connection. The engine may report the
// disconnect of a connection accept refused, so unknown ids are ignored.
func (s *FTPAdapter) release(id uint32) {
	v, ok := s.activeConnections.LoadAndDelete(id)
	if !ok {
		return
	}
	conn := v.(*connection)
	conn.cancel()

	current := s.connCount.Add(-1)
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}

	s.metrics.RecordConnectionClosed()
	s.metrics.SetActiveConnections(current)
	logger.Debug("FTP connection %d from %s closed after %v (active: %d)",
		id, conn.remote, time.Since(conn.since).Round(time.Second), current)
}

// login authenticates user and builds the driver serving the connection.
// The password is never logged.
func (s *FTPAdapter) login(id uint32, user, pass string) (ftpserver.ClientDriver, error) {
	v, ok := s.activeConnections.Load(id)
	if !ok {
		return nil, errUnknownConnection
	}
	conn := v.(*connection)

	if s.factory == nil || s.auth == nil {
		return nil, errors.New("no backend configured")
	}

	host := hostOf(conn.remote)
	if !s.logins.Allow(host) {
		s.metrics.RecordAuthentication(false)
		logger.Warn("FTP login for %q from %s throttled (next attempt in %v)",
			user, conn.remote, s.logins.Delay(host).Round(time.Second))
		return nil, errLoginThrottled
	}

	session, err := s.auth.Authenticate(conn.ctx, user, pass)
	if err != nil {
		s.metrics.RecordAuthentication(false)
		logger.Info("FTP login failed for %q from %s: %v", user, conn.remote, err)
		return nil, err
	}

	// Login makes no FileSystem call. A root the service cannot resolve
	// surfaces on the first command instead.
	fs := s.factory()

	s.metrics.RecordAuthentication(true)
	log := logger.With("session", session.ID, "user", session.Username, "remote", conn.remote.String())
	log.Info("User logged in")

	return &clientDriver{
		ctx:       conn.ctx,
		fs:        fs,
		session:   session,
		journal:   s.journal,
		metrics:   s.metrics,
		log:       log,
		transfers: &s.transfers,
	}, nil
}

// hostOf strips the port so all connections of one client share a login
// budget.
func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

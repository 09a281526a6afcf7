package adapter

import (
	"context"

	"github.com/filefighter/ftpfighter/pkg/backend"
)

// Adapter is a protocol server managed by server.Server.
//
// Lifecycle:
//  1. Creation with protocol-specific configuration
//  2. SetBackend provides the per-connection filesystem factory and the
//     authenticator shared by all adapters
//  3. Serve starts the protocol server and blocks until shutdown
//  4. Stop initiates graceful shutdown with a timeout
//
// Implementations must be safe for concurrent use. SetBackend is called once
// before Serve, but Stop may be called concurrently with Serve.
type Adapter interface {
	// Serve starts the protocol server and blocks until ctx is cancelled or
	// an unrecoverable error occurs.
	//
	// When ctx is cancelled Serve stops accepting connections, drains active
	// transfers up to the shutdown timeout and returns nil. If Serve returns
	// before cancellation the server treats it as fatal and stops every other
	// adapter.
	Serve(ctx context.Context) error

	// SetBackend injects the filesystem factory and the authenticator.
	//
	// Each authenticated connection gets its own FileSystem from factory.
	SetBackend(factory backend.Factory, auth backend.Authenticator)

	// Stop initiates graceful shutdown. It is idempotent and safe to call
	// concurrently with Serve. ctx bounds how long Stop waits.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name used in logs and metrics ("FTP").
	Protocol() string

	// Port returns the control connection port.
	Port() int
}

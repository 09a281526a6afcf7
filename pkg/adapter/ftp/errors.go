package ftp

import (
	"errors"

	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/filefighter/ftpfighter/pkg/backend"
)

var (
	errTooManyConnections = errors.New("too many connections, try again later")
	errShuttingDown       = errors.New("server is shutting down")
	errTLSNotConfigured   = errors.New("TLS is not configured")
	errUnknownConnection  = errors.New("unknown connection")
	errLoginThrottled     = errors.New("too many login attempts, try again later")
)

// replyError lets the engine pick the 553 reply for path errors. Every other
// classified error keeps the engine's default reply for the command.
type replyError struct {
	err *backend.Error
}

func (e *replyError) Error() string { return e.err.Error() }
func (e *replyError) Unwrap() error { return e.err }

func (e *replyError) Is(target error) bool {
	return target == ftpserver.ErrFileNameNotAllowed &&
		e.err.Reply() == backend.ReplyFileNameNotAllowed
}

// toEngine wraps classified errors for the engine. nil stays nil.
func toEngine(err error) error {
	var be *backend.Error
	if errors.As(err, &be) {
		return &replyError{err: be}
	}
	return err
}

package backend

import (
	"errors"
	"fmt"

	"github.com/filefighter/ftpfighter/internal/logger"
	"github.com/filefighter/ftpfighter/pkg/remote"
)

// Error is a classified failure of a filesystem operation.
//
// The FTP layer shows Message to the client. Err keeps the underlying cause
// for logs and is never sent over the control connection.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is the client-facing description
	Message string

	// Path is the virtual path the operation was applied to (if any)
	Path string

	// Status is the remote HTTP status for ErrRemoteRejected, zero otherwise
	Status int

	// Err is the underlying cause
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reply returns the FTP reply class the error belongs to.
func (e *Error) Reply() int {
	return e.Code.Reply()
}

// ErrorCode represents the category of a filesystem operation error.
type ErrorCode int

const (
	// ErrPathInvalid indicates the path still has relative components after
	// normalization, or is not valid UTF-8
	ErrPathInvalid ErrorCode = iota

	// ErrFileNameNotAllowed indicates the path cannot be split into a parent
	// folder and a leaf name
	ErrFileNameNotAllowed

	// ErrUnsupportedOffset indicates a transfer was requested at a non-zero offset
	ErrUnsupportedOffset

	// ErrNotADirectory indicates a directory was expected but the inode is a file
	ErrNotADirectory

	// ErrTransportFailure indicates the remote service could not be reached
	// or answered with something undecodable
	ErrTransportFailure

	// ErrRemoteRejected indicates the remote service returned an error document
	ErrRemoteRejected

	// ErrNotSupported indicates the remote model cannot express the operation
	// (permissions, ownership, random-access files)
	ErrNotSupported
)

// FTP reply codes used for classified errors.
const (
	ReplyLocalError         = 451
	ReplyNotImplemented     = 504
	ReplyFileNotAvailable   = 550
	ReplyFileNameNotAllowed = 553
)

var codeNames = map[ErrorCode]string{
	ErrPathInvalid:        "path_invalid",
	ErrFileNameNotAllowed: "file_name_not_allowed",
	ErrUnsupportedOffset:  "unsupported_offset",
	ErrNotADirectory:      "not_a_directory",
	ErrTransportFailure:   "transport_failure",
	ErrRemoteRejected:     "remote_rejected",
	ErrNotSupported:       "not_supported",
}

// String returns a stable snake_case name, used as a metrics label.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Reply maps the code to its FTP reply class.
func (c ErrorCode) Reply() int {
	switch c {
	case ErrTransportFailure:
		return ReplyLocalError
	case ErrUnsupportedOffset, ErrNotSupported:
		return ReplyNotImplemented
	case ErrPathInvalid, ErrFileNameNotAllowed:
		return ReplyFileNameNotAllowed
	default:
		return ReplyFileNotAvailable
	}
}

// CodeOf returns the code of the *Error wrapped by err.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// NotSupported reports an operation the remote model cannot express.
func NotSupported(op, path string) *Error {
	return newError(ErrNotSupported, path, "%s is not supported", op)
}

func newError(code ErrorCode, path, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// translate classifies a remote client error.
//
// A transport failure becomes a generic local error, and its detail is only
// logged. An error document from the service becomes "not available" with
// the service's own message.
func translate(err error, path string) error {
	if err == nil {
		return nil
	}

	if re, ok := remote.AsResponseError(err); ok {
		logger.Warn("FileSystem service rejected %s on %q: status=%d (%s) %s",
			re.Op, path, re.StatusCode, re.Status, re.Message)
		return &Error{
			Code:    ErrRemoteRejected,
			Message: re.Message,
			Path:    path,
			Status:  re.StatusCode,
			Err:     err,
		}
	}

	logger.Warn("Remote call failed on %q: %v", path, err)
	return &Error{
		Code:    ErrTransportFailure,
		Message: "Internal Server Error",
		Err:     err,
	}
}

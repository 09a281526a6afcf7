package remote

import (
	"errors"
	"fmt"
)

// TransportError means the call produced no usable answer: the service was
// unreachable, the request was cancelled, or the response could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseError is a well-formed error answer from a remote service.
type ResponseError struct {
	Op string

	// StatusCode is the HTTP status of the response
	StatusCode int

	// Status is the service's own status text (e.g., "Not Found")
	Status string

	// Message is the human-readable reason supplied by the service
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("remote %s: error response with code '%s' and reason '%s'", e.Op, e.Status, e.Message)
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsResponseError returns the *ResponseError wrapped by err, if any.
func AsResponseError(err error) (*ResponseError, bool) {
	var re *ResponseError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

package backend

import (
	"context"
	"fmt"

	"github.com/filefighter/ftpfighter/internal/logger"
)

// Authenticator turns FTP credentials into a Session.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Session, error)
}

// AuthErrorKind classifies a failed login.
type AuthErrorKind int

const (
	// AuthBadUser indicates a missing username or an unknown account
	AuthBadUser AuthErrorKind = iota

	// AuthBadPassword indicates a missing password
	AuthBadPassword

	// AuthFailed indicates the FileSystem service refused the credentials
	AuthFailed
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthBadUser:
		return "bad user"
	case AuthBadPassword:
		return "bad password"
	default:
		return "authentication failed"
	}
}

// AuthError is returned for every failed login. It never exposes whether the
// remote service was unreachable; a failed login is not retryable.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SessionAuthenticator logs users in against the FileSystem service.
type SessionAuthenticator struct {
	client IdentityClient
}

// NewSessionAuthenticator creates a SessionAuthenticator backed by client.
func NewSessionAuthenticator(client IdentityClient) *SessionAuthenticator {
	return &SessionAuthenticator{client: client}
}

var _ Authenticator = (*SessionAuthenticator)(nil)

// Authenticate obtains a token for the credentials and then the numeric
// account id for that token.
//
// Empty credentials are refused before any remote call.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	if username == "" {
		return nil, &AuthError{Kind: AuthBadUser, Message: "username is empty"}
	}
	if password == "" {
		return nil, &AuthError{Kind: AuthBadPassword, Message: "password is empty"}
	}

	token, err := a.client.Authenticate(ctx, username, password)
	if err != nil {
		logger.Warn("Login of %q refused: %v", username, err)
		return nil, &AuthError{Kind: AuthFailed, Message: "invalid credentials", Err: err}
	}

	user, err := a.client.UserInfo(ctx, token)
	if err != nil {
		logger.Warn("Fetching account of %q failed: %v", username, err)
		return nil, &AuthError{Kind: AuthBadUser, Message: "unknown account", Err: err}
	}

	return NewSession(username, token, user.ID), nil
}

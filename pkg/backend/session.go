package backend

import (
	"fmt"

	"github.com/google/uuid"
)

// Session is the identity of one authenticated FTP connection.
//
// It is created once at login and never modified afterwards. The bearer
// token is only reachable through Token and is kept out of every string
// representation so it cannot end up in logs.
type Session struct {
	// ID correlates log lines of one connection
	ID string

	// Username is the login name
	Username string

	// UserID is the numeric account id reported by the FileSystem service
	UserID uint32

	token string
}

// NewSession creates a Session with a fresh correlation id.
func NewSession(username, token string, userID uint32) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Username: username,
		UserID:   userID,
		token:    token,
	}
}

// Token returns the bearer token for remote calls.
func (s *Session) Token() string {
	return s.token
}

func (s *Session) String() string {
	return s.Username
}

func (s *Session) GoString() string {
	return fmt.Sprintf("backend.Session{ID:%q, Username:%q, UserID:%d}", s.ID, s.Username, s.UserID)
}

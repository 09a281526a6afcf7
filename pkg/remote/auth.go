package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// PasswordSalt is appended to the password before hashing.
const PasswordSalt = "FileFighterWithSomeSalt"

// HashPassword returns the uppercase hex SHA-256 of password+PasswordSalt,
// the form the FileSystem service expects in basic auth.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password + PasswordSalt))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Authenticate exchanges credentials for a bearer token.
//
// The service answers 201 Created with the token in the "token" cookie. Any
// other status is returned as a *ResponseError.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	const op = "authenticate"

	resp, err := c.send(ctx, call{
		service:   serviceFileSystem,
		op:        op,
		method:    http.MethodPost,
		url:       c.fsURL + "/user/authenticate",
		basicUser: username,
		basicPass: HashPassword(password),
	})
	if err != nil {
		return "", err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return "", &ResponseError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Message:    fmt.Sprintf("Response Code was %d, but expected %d", resp.StatusCode, http.StatusCreated),
		}
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == TokenCookie && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	return "", &ResponseError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Message:    "no token cookie in response",
	}
}

// UserInfo returns the account the token belongs to.
func (c *Client) UserInfo(ctx context.Context, token string) (*User, error) {
	var user User
	err := c.doJSON(ctx, call{
		service: serviceFileSystem,
		op:      "user_info",
		method:  http.MethodGet,
		url:     c.fsURL + "/user/info",
		token:   token,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

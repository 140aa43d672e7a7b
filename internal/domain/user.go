// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type UserID string

// Identity is the verified user attached to a connection at handshake.
// It is trusted for the connection's whole life; events never re-verify it.
type Identity struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"username"`
	Email       string `json:"email"`
}

func NewIdentity(userID UserID, displayName, email string) (Identity, error) {
	if len(displayName) == 0 {
		return Identity{}, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{UserID: userID, DisplayName: displayName, Email: email}, nil
}

package user

import (
	"context"
	"strings"
)

// User is a directory record. The realtime core only reads it for identity
// and display fields.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Summary is the compact form embedded in outbound payloads.
type Summary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Gender   string `json:"gender"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, FullName: u.FullName(), Gender: u.Gender}
}

// Identity is the authenticated participant bound to one connection. The
// zero value is the anonymous identity.
type Identity struct {
	UserID   int64
	Username string
}

func (i Identity) Anonymous() bool { return i.UserID == 0 }

// Directory resolves participants. Lookups of absent users return
// domain.ErrUserNotFound.
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

package notify

import (
	"fmt"
	"time"

	"go-social/internal/domain"
)

type Verb string

const (
	VerbComment Verb = "comment"
	VerbLike    Verb = "like"
)

func ParseVerb(s string) (Verb, error) {
	switch v := Verb(s); v {
	case VerbComment, VerbLike:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidVerb, s)
	}
}

// Notification is a comment or like addressed to one recipient.
type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	ActorID     int64     `json:"actor_id"`
	Verb        Verb      `json:"verb"`
	Description string    `json:"description"`
	Unread      bool      `json:"unread"`
	CreatedAt   time.Time `json:"created_at"`
}

func (n *Notification) OrderKey() (time.Time, int64) { return n.CreatedAt, n.ID }

// Scope selects a recipient's notifications, optionally of one verb.
type Scope struct {
	RecipientID int64
	Verb        Verb
}

// Notice is one live event addressed to a participant's personal group.
// Services return them so handlers can emit after the change is committed.
type Notice struct {
	RecipientID int64
	Payload     any
}

// ---------------------------------------------
// Outbound events
// ---------------------------------------------

type AnonymousUser struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

var anonymousUser = AnonymousUser{Type: "anonymous_user", Command: "anonymous_user"}

type NewNotification struct {
	Type                string        `json:"type"`
	Command             string        `json:"command"`
	Notification        *Notification `json:"notification"`
	UnreadNotifications int           `json:"unread_notifications"`
}

type AllNotifications struct {
	Type                string          `json:"type"`
	Command             string          `json:"command"`
	Notifications       []*Notification `json:"notifications"`
	UnreadNotifications int             `json:"unread_notifications"`
}

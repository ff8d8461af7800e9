// Package friends manages friendship requests and friend edges. Every change
// returns the live notices it causes instead of emitting them itself.
package friends

import (
	"time"

	"go-social/internal/user"
)

// Request is a friendship request from FromID to ToID.
type Request struct {
	ID         int64      `json:"id"`
	FromID     int64      `json:"from_user_id"`
	ToID       int64      `json:"to_user_id"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	ViewedAt   *time.Time `json:"viewed_at,omitempty"`
}

func (r *Request) OrderKey() (time.Time, int64) { return r.CreatedAt, r.ID }

type Status string

const (
	StatusPending  Status = "pending"
	StatusViewed   Status = "viewed"
	StatusRejected Status = "rejected"
)

func (r *Request) Status() Status {
	switch {
	case r.RejectedAt != nil:
		return StatusRejected
	case r.ViewedAt != nil:
		return StatusViewed
	default:
		return StatusPending
	}
}

// Pending reports whether the request still awaits an answer.
func (r *Request) Pending() bool { return r.RejectedAt == nil }

// ---------------------------------------------
// Outbound events
// ---------------------------------------------

// RequestView is a request with both ends resolved for display.
type RequestView struct {
	ID        int64        `json:"id"`
	From      user.Summary `json:"from_user"`
	To        user.Summary `json:"to_user"`
	Message   string       `json:"message"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

type RequestEvent struct {
	Type         string      `json:"type"`
	Command      string      `json:"command"`
	Notification RequestView `json:"notification"`
}

type AllRequests struct {
	Type                string        `json:"type"`
	Command             string        `json:"command"`
	FriendRequests      []RequestView `json:"friend_requests"`
	UnreadNotifications int           `json:"unread_notifications"`
}

const (
	commandNewRequest = "new_friend_request"
	commandAccepted   = "friend_request_accepted"
	commandCanceled   = "friend_request_canceled"
)

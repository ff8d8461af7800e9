package chat

import (
	"time"

	"go-social/internal/user"
)

// ---------------------------------------------
// Database & API Models
// ---------------------------------------------

// Room is the single conversation between an unordered pair of participants.
type Room struct {
	ID        string    `json:"room_id"`
	LowID     int64     `json:"-"`
	HighID    int64     `json:"-"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Other returns the counterpart of participant id.
func (r *Room) Other(id int64) int64 {
	if id == r.LowID {
		return r.HighID
	}
	return r.LowID
}

func (r *Room) Has(id int64) bool { return id == r.LowID || id == r.HighID }

type Message struct {
	ID          int64     `json:"id"`
	RoomID      string    `json:"room_id"`
	AuthorID    int64     `json:"author_id"`
	RecipientID int64     `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m *Message) OrderKey() (time.Time, int64) { return m.CreatedAt, m.ID }

// ---------------------------------------------
// Outbound events
// ---------------------------------------------

// ChatMessage is the wire form of a persisted message.
type ChatMessage struct {
	Command        string    `json:"command,omitempty"`
	Author         string    `json:"author"`
	AuthorFullName string    `json:"author_full_name"`
	Friend         string    `json:"friend"`
	FriendFullName string    `json:"friend_full_name"`
	AuthorGender   string    `json:"author_gender"`
	FriendGender   string    `json:"friend_gender"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

func newChatMessage(m *Message, author, friend *user.User) ChatMessage {
	return ChatMessage{
		Author:         author.Username,
		AuthorFullName: author.FullName(),
		Friend:         friend.Username,
		FriendFullName: friend.FullName(),
		AuthorGender:   author.Gender,
		FriendGender:   friend.Gender,
		Content:        m.Content,
		Timestamp:      m.CreatedAt,
	}
}

type AllMessages struct {
	Command  string        `json:"command"`
	Messages []ChatMessage `json:"messages"`
}

type TypingEvent struct {
	Command string `json:"command"`
	Message string `json:"message,omitempty"`
}

// MessageNotification tells the recipient about a message outside the open
// conversation view.
type MessageNotification struct {
	Type         string        `json:"type"`
	Command      string        `json:"command"`
	Notification NoticeContent `json:"notification"`
}

type NoticeContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	From  string `json:"from"`
	Room  string `json:"room_id"`
}

type ErrorEvent struct {
	Command string `json:"command"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

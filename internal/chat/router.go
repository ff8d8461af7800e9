package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"go-social/internal/backlog"
	"go-social/internal/domain"
	"go-social/internal/hub"
	"go-social/internal/user"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Registry is the part of the connection registry the router needs.
type Registry interface {
	Join(ctx context.Context, c *hub.Conn, group string) error
	Broadcast(ctx context.Context, payload any, groups ...string) error
	Send(ctx context.Context, c *hub.Conn, payload any) error
}

type Options struct {
	HistoryLimit    int
	MaxMessageBytes int
}

// Router is the chat message router shared by every chat connection.
type Router struct {
	rooms    *Rooms
	messages MessageStore
	dir      user.Directory
	hub      Registry
	log      *slog.Logger
	tracer   trace.Tracer
	opts     Options
}

func NewRouter(rooms *Rooms, messages MessageStore, dir user.Directory, registry Registry, log *slog.Logger, opts Options) *Router {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = backlog.DefaultLimit
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 4096
	}
	return &Router{
		rooms:    rooms,
		messages: messages,
		dir:      dir,
		hub:      registry,
		log:      log.With(slog.String("component", "chat")),
		tracer:   otel.Tracer("go-social/chat"),
		opts:     opts,
	}
}

type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "closed"
	}
}

// Session is one chat connection bound to one conversation.
type Session struct {
	router *Router
	conn   *hub.Conn
	viewer *user.User
	friend *user.User
	room   *Room
	log    *slog.Logger
	state  atomic.Int32
}

// Open resolves the counterpart, gets or creates the room and joins the
// viewer's conversation group.
func (r *Router) Open(ctx context.Context, conn *hub.Conn, friendUsername string) (*Session, error) {
	s := &Session{router: r, conn: conn}
	s.state.Store(int32(StateConnecting))

	if conn.Identity.Anonymous() {
		return nil, domain.ErrAuthenticationRequired
	}
	viewer, err := r.dir.GetUserByID(ctx, conn.Identity.UserID)
	if err != nil {
		return nil, participantErr(err, "viewer")
	}
	friend, err := r.dir.GetUserByUsername(ctx, friendUsername)
	if err != nil {
		return nil, participantErr(err, friendUsername)
	}
	room, err := r.rooms.GetOrCreate(ctx, viewer.ID, friend.ID)
	if err != nil {
		return nil, err
	}
	if err := r.hub.Join(ctx, conn, hub.ConversationGroup(room.ID, viewer.ID)); err != nil {
		return nil, err
	}

	s.viewer, s.friend, s.room = viewer, friend, room
	s.log = r.log.With(
		slog.String("conn_id", conn.ID),
		slog.String("room_id", room.ID),
		slog.Int64("user_id", viewer.ID),
	)
	s.state.Store(int32(StateConnected))
	s.log.Info("chat - open - connected", slog.String("friend", friend.Username))
	return s, nil
}

func participantErr(err error, who string) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownParticipant, who)
	}
	return err
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Room() *Room { return s.room }

func (s *Session) Close() {
	if State(s.state.Swap(int32(StateClosed))) != StateClosed {
		s.log.Info("chat - close - closed")
	}
}

func (s *Session) viewerGroup() string { return hub.ConversationGroup(s.room.ID, s.viewer.ID) }

// roomGroups are both participants' views of the room.
func (s *Session) roomGroups() []string {
	return []string{
		hub.ConversationGroup(s.room.ID, s.viewer.ID),
		hub.ConversationGroup(s.room.ID, s.friend.ID),
	}
}

// Handle processes one inbound frame. Failures are reported to this
// connection only and never end the session.
func (s *Session) Handle(ctx context.Context, data []byte) {
	if s.State() != StateConnected {
		return
	}
	cmd, err := DecodeCommand(data)
	if err == nil {
		err = s.dispatch(ctx, cmd)
	}
	if err != nil {
		s.replyError(ctx, err)
	}
}

func (s *Session) dispatch(ctx context.Context, cmd Command) error {
	ctx, span := s.router.tracer.Start(ctx, "chat."+cmd.command(),
		trace.WithAttributes(attribute.String("room.id", s.room.ID)))
	defer span.End()

	var err error
	switch c := cmd.(type) {
	case FetchMessages:
		err = s.fetchMessages(ctx, c)
	case NewMessage:
		err = s.newMessage(ctx, c)
	case TypingStart:
		err = s.typingStart(ctx, c)
	case TypingStop:
		err = s.router.hub.Broadcast(ctx, TypingEvent{Command: "typing_stop"}, s.roomGroups()...)
	default:
		err = fmt.Errorf("%w: %T", domain.ErrUnknownCommand, cmd)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.Code(err))
	}
	return err
}

func (s *Session) fetchMessages(ctx context.Context, c FetchMessages) error {
	if err := s.checkPair(ctx, c.Author, c.Friend); err != nil {
		return err
	}
	src := backlog.SourceFunc[string, *Message](s.router.messages.FindMessages)
	msgs, err := backlog.LoadRecent[string, *Message](ctx, src, s.room.ID, s.router.opts.HistoryLimit)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	batch := AllMessages{Command: "all_messages", Messages: make([]ChatMessage, 0, len(msgs))}
	for _, m := range msgs {
		author, friend := s.viewer, s.friend
		if m.AuthorID != s.viewer.ID {
			author, friend = s.friend, s.viewer
		}
		batch.Messages = append(batch.Messages, newChatMessage(m, author, friend))
	}
	return s.router.hub.Broadcast(ctx, batch, s.viewerGroup())
}

// checkPair resolves both names and requires them to be this room's pair,
// in either order.
func (s *Session) checkPair(ctx context.Context, a, b string) error {
	for _, name := range []string{a, b} {
		if _, err := s.router.dir.GetUserByUsername(ctx, name); err != nil {
			return participantErr(err, name)
		}
	}
	if (a == s.viewer.Username && b == s.friend.Username) || (a == s.friend.Username && b == s.viewer.Username) {
		return nil
	}
	return domain.ErrParticipantMismatch
}

func (s *Session) newMessage(ctx context.Context, c NewMessage) error {
	author, err := s.router.dir.GetUserByUsername(ctx, c.From)
	if err != nil {
		return participantErr(err, c.From)
	}
	recipient, err := s.router.dir.GetUserByUsername(ctx, c.Friend)
	if err != nil {
		return participantErr(err, c.Friend)
	}
	if author.ID != s.viewer.ID || recipient.ID != s.friend.ID {
		return domain.ErrParticipantMismatch
	}
	if strings.TrimSpace(c.Message) == "" {
		return domain.ErrMessageEmpty
	}
	if len(c.Message) > s.router.opts.MaxMessageBytes {
		return domain.ErrMessageTooLong
	}

	// Persistence and the resulting broadcasts outlive the sender's
	// connection.
	ctx = context.WithoutCancel(ctx)
	msg, err := s.router.messages.InsertMessage(ctx, &Message{
		RoomID:      s.room.ID,
		AuthorID:    author.ID,
		RecipientID: recipient.ID,
		Content:     c.Message,
	})
	if err != nil {
		return fmt.Errorf("new message: %w", err)
	}

	event := newChatMessage(msg, author, recipient)
	event.Command = "new_message"
	chatErr := s.router.hub.Broadcast(ctx, event, s.roomGroups()...)

	notice := MessageNotification{
		Type:    "notify",
		Command: "new_message_notification",
		Notification: NoticeContent{
			Title: "Message",
			Body:  author.Username + " messaged you",
			From:  author.Username,
			Room:  s.room.ID,
		},
	}
	notifyErr := s.router.hub.Broadcast(ctx, notice, hub.CommentLikeGroup(recipient.ID))

	if err := errors.Join(chatErr, notifyErr); err != nil {
		return fmt.Errorf("new message: broadcast: %w", err)
	}
	s.log.Debug("chat - new_message - delivered", slog.Int64("message_id", msg.ID))
	return nil
}

func (s *Session) typingStart(ctx context.Context, c TypingStart) error {
	if c.From != "" && c.From != s.viewer.Username {
		return domain.ErrParticipantMismatch
	}
	return s.router.hub.Broadcast(ctx, TypingEvent{Command: "typing_start", Message: s.viewer.Username}, s.roomGroups()...)
}

func (s *Session) replyError(ctx context.Context, err error) {
	code := domain.Code(err)
	msg := err.Error()
	if code == "internal_error" {
		s.log.Error("chat - command - failed", slog.Any("error", err))
		msg = "internal error"
	} else {
		s.log.Debug("chat - command - rejected", slog.String("code", code), slog.Any("error", err))
	}
	if sendErr := s.router.hub.Send(ctx, s.conn, ErrorEvent{Command: "error", Code: code, Message: msg}); sendErr != nil {
		s.log.Warn("chat - reply - failed", slog.Any("error", sendErr))
	}
}

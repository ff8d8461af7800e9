package notify

import (
	"context"
	"fmt"

	"go-social/internal/backlog"
	"go-social/internal/domain"
)

const DefaultCatchUpLimit = 4

// Service owns comment and like notification records.
type Service struct {
	store Store
	limit int
}

func NewService(store Store, catchUpLimit int) *Service {
	if catchUpLimit <= 0 {
		catchUpLimit = DefaultCatchUpLimit
	}
	return &Service{store: store, limit: catchUpLimit}
}

// Create persists a notification and returns the live event for its
// recipient.
func (s *Service) Create(ctx context.Context, recipientID, actorID int64, verb, description string) (*Notification, Notice, error) {
	v, err := ParseVerb(verb)
	if err != nil {
		return nil, Notice{}, err
	}
	if recipientID <= 0 || actorID <= 0 {
		return nil, Notice{}, domain.ErrUnknownParticipant
	}

	n, err := s.store.Insert(ctx, &Notification{
		RecipientID: recipientID,
		ActorID:     actorID,
		Verb:        v,
		Description: description,
	})
	if err != nil {
		return nil, Notice{}, err
	}
	unread, err := s.store.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, Notice{}, fmt.Errorf("unread count: %w", err)
	}

	return n, Notice{
		RecipientID: recipientID,
		Payload: NewNotification{
			Type:                "notify",
			Command:             "new_like_comment_notification",
			Notification:        n,
			UnreadNotifications: unread,
		},
	}, nil
}

// CatchUp returns the most recent unread comments, oldest first, with the
// recipient's total unread count.
func (s *Service) CatchUp(ctx context.Context, recipientID int64) (any, error) {
	src := backlog.SourceFunc[Scope, *Notification](s.store.NewestUnread)
	recent, err := backlog.LoadRecent[Scope, *Notification](ctx, src, Scope{RecipientID: recipientID, Verb: VerbComment}, s.limit)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	unread, err := s.store.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("unread count: %w", err)
	}
	return AllNotifications{
		Type:                "all_notifications",
		Command:             "notifications",
		Notifications:       recent,
		UnreadNotifications: unread,
	}, nil
}

func (s *Service) List(ctx context.Context, recipientID int64, limit int) ([]*Notification, error) {
	out, err := s.store.List(ctx, recipientID, limit)
	if out == nil && err == nil {
		out = []*Notification{}
	}
	return out, err
}

func (s *Service) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	return s.store.UnreadCount(ctx, recipientID)
}

// MarkRead marks the given notifications read, or all of them when no ids
// are given.
func (s *Service) MarkRead(ctx context.Context, recipientID int64, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return s.store.MarkAllRead(ctx, recipientID)
	}
	return s.store.MarkRead(ctx, recipientID, ids)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	return s.store.MarkAllRead(ctx, recipientID)
}

package friends

import (
	"context"
	"fmt"

	"go-social/internal/domain"
	"go-social/internal/notify"
	"go-social/internal/user"
)

type Service struct {
	store Store
	dir   user.Directory
}

func NewService(store Store, dir user.Directory) *Service {
	return &Service{store: store, dir: dir}
}

// SendRequest asks to befriend to. The returned notices announce the request
// to its target.
func (s *Service) SendRequest(ctx context.Context, fromID, toID int64, message string) (*Request, []notify.Notice, error) {
	if fromID == toID {
		return nil, nil, domain.ErrInvalidPair
	}
	if fromID <= 0 || toID <= 0 {
		return nil, nil, domain.ErrUnknownParticipant
	}
	friends, err := s.store.AreFriends(ctx, fromID, toID)
	if err != nil {
		return nil, nil, err
	}
	if friends {
		return nil, nil, domain.ErrAlreadyFriends
	}
	req, err := s.store.CreateRequest(ctx, &Request{FromID: fromID, ToID: toID, Message: message})
	if err != nil {
		return nil, nil, err
	}
	notice, err := s.notice(ctx, toID, commandNewRequest, req)
	if err != nil {
		return nil, nil, err
	}
	return req, []notify.Notice{notice}, nil
}

// Accept is called by the target of a pending request from requesterID.
func (s *Service) Accept(ctx context.Context, requesterID, targetID int64) ([]notify.Notice, error) {
	req, err := s.store.GetRequest(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Accept(ctx, requesterID, targetID); err != nil {
		return nil, err
	}
	notice, err := s.notice(ctx, requesterID, commandAccepted, req)
	if err != nil {
		return nil, err
	}
	return []notify.Notice{notice}, nil
}

// Reject is called by the target. The requester is not told.
func (s *Service) Reject(ctx context.Context, requesterID, targetID int64) error {
	return s.store.RejectRequest(ctx, requesterID, targetID)
}

// Cancel withdraws the requester's pending request and tells the target.
func (s *Service) Cancel(ctx context.Context, requesterID, targetID int64) ([]notify.Notice, error) {
	req, err := s.store.GetRequest(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteRequest(ctx, requesterID, targetID); err != nil {
		return nil, err
	}
	notice, err := s.notice(ctx, targetID, commandCanceled, req)
	if err != nil {
		return nil, err
	}
	return []notify.Notice{notice}, nil
}

func (s *Service) MarkViewed(ctx context.Context, targetID int64) (int64, error) {
	return s.store.MarkViewed(ctx, targetID)
}

func (s *Service) RemoveFriend(ctx context.Context, a, b int64) error {
	n, err := s.store.RemoveFriend(ctx, a, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFriends
	}
	return nil
}

func (s *Service) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	return s.store.AreFriends(ctx, a, b)
}

func (s *Service) Friends(ctx context.Context, id int64) ([]user.Summary, error) {
	ids, err := s.store.Friends(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]user.Summary, 0, len(ids))
	for _, fid := range ids {
		u, err := s.dir.GetUserByID(ctx, fid)
		if err != nil {
			return nil, fmt.Errorf("friend %d: %w", fid, err)
		}
		out = append(out, u.Summary())
	}
	return out, nil
}

func (s *Service) Received(ctx context.Context, id int64) ([]RequestView, error) {
	reqs, err := s.store.Received(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

func (s *Service) Sent(ctx context.Context, id int64) ([]RequestView, error) {
	reqs, err := s.store.Sent(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, reqs)
}

func (s *Service) UnreadCount(ctx context.Context, id int64) (int, error) {
	return s.store.UnviewedCount(ctx, id)
}

// CatchUp lists every pending received request, oldest first, with the
// number not yet viewed.
func (s *Service) CatchUp(ctx context.Context, id int64) (any, error) {
	received, err := s.Received(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load friend requests: %w", err)
	}
	unread, err := s.store.UnviewedCount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("unread count: %w", err)
	}
	return AllRequests{
		Type:                "all_friend_requests",
		Command:             "all_friend_requests",
		FriendRequests:      received,
		UnreadNotifications: unread,
	}, nil
}

func (s *Service) views(ctx context.Context, reqs []*Request) ([]RequestView, error) {
	out := make([]RequestView, 0, len(reqs))
	for _, r := range reqs {
		v, err := s.view(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) view(ctx context.Context, r *Request) (RequestView, error) {
	from, err := s.dir.GetUserByID(ctx, r.FromID)
	if err != nil {
		return RequestView{}, fmt.Errorf("request %d sender: %w", r.ID, err)
	}
	to, err := s.dir.GetUserByID(ctx, r.ToID)
	if err != nil {
		return RequestView{}, fmt.Errorf("request %d target: %w", r.ID, err)
	}
	return RequestView{
		ID:        r.ID,
		From:      from.Summary(),
		To:        to.Summary(),
		Message:   r.Message,
		Status:    r.Status(),
		CreatedAt: r.CreatedAt,
	}, nil
}

func (s *Service) notice(ctx context.Context, recipientID int64, command string, r *Request) (notify.Notice, error) {
	v, err := s.view(ctx, r)
	if err != nil {
		return notify.Notice{}, err
	}
	return notify.Notice{
		RecipientID: recipientID,
		Payload:     RequestEvent{Type: "notify", Command: command, Notification: v},
	}, nil
}

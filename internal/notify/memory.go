package notify

import (
	"context"
	"slices"
	"sync"
	"time"
)

type MemoryStore struct {
	mu     sync.Mutex
	now    func() time.Time
	nextID int64
	rows   []*Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Insert(_ context.Context, n *Notification) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	stored := *n
	stored.ID = s.nextID
	stored.Unread = true
	stored.CreatedAt = s.now()
	s.rows = append(s.rows, &stored)
	out := stored
	return &out, nil
}

// newest walks rows newest first, copying those accepted by keep.
func (s *MemoryStore) newest(limit int, keep func(*Notification) bool) []*Notification {
	var out []*Notification
	for i := len(s.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if n := s.rows[i]; keep(n) {
			c := *n
			out = append(out, &c)
		}
	}
	return out
}

func (s *MemoryStore) NewestUnread(_ context.Context, scope Scope, limit int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newest(limit, func(n *Notification) bool {
		return n.RecipientID == scope.RecipientID && n.Unread && (scope.Verb == "" || n.Verb == scope.Verb)
	}), nil
}

func (s *MemoryStore) List(_ context.Context, recipientID int64, limit int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newest(limit, func(n *Notification) bool { return n.RecipientID == recipientID }), nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, recipientID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.rows {
		if n.RecipientID == recipientID && n.Unread {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, recipientID int64, ids []int64) (int64, error) {
	return s.markRead(recipientID, func(n *Notification) bool { return slices.Contains(ids, n.ID) }), nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, recipientID int64) (int64, error) {
	return s.markRead(recipientID, func(*Notification) bool { return true }), nil
}

func (s *MemoryStore) markRead(recipientID int64, match func(*Notification) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for _, n := range s.rows {
		if n.RecipientID == recipientID && n.Unread && match(n) {
			n.Unread = false
			changed++
		}
	}
	return changed
}

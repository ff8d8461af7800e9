package friends

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"go-social/internal/domain"
)

type pair [2]int64

type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	requests map[pair]*Request
	order    []pair
	friends  map[pair]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		requests: make(map[pair]*Request),
		friends:  make(map[pair]time.Time),
	}
}

func copyRequest(r *Request) *Request {
	out := *r
	return &out
}

func (s *MemoryStore) CreateRequest(_ context.Context, r *Request) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pair{r.FromID, r.ToID}
	if _, ok := s.requests[key]; ok {
		return nil, domain.ErrAlreadyExists
	}
	if _, ok := s.requests[pair{r.ToID, r.FromID}]; ok {
		return nil, domain.ErrAlreadyExists
	}
	s.nextID++
	stored := &Request{ID: s.nextID, FromID: r.FromID, ToID: r.ToID, Message: r.Message, CreatedAt: s.now()}
	s.requests[key] = stored
	s.order = append(s.order, key)
	return copyRequest(stored), nil
}

func (s *MemoryStore) GetRequest(_ context.Context, fromID, toID int64) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[pair{fromID, toID}]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return copyRequest(r), nil
}

func (s *MemoryStore) pending(fromID, toID int64) (*Request, error) {
	r, ok := s.requests[pair{fromID, toID}]
	if !ok || !r.Pending() {
		return nil, domain.ErrRequestNotFound
	}
	return r, nil
}

func (s *MemoryStore) RejectRequest(_ context.Context, fromID, toID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.pending(fromID, toID)
	if err != nil {
		return err
	}
	now := s.now()
	r.RejectedAt = &now
	return nil
}

func (s *MemoryStore) DeleteRequest(_ context.Context, fromID, toID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.pending(fromID, toID); err != nil {
		return err
	}
	s.drop(pair{fromID, toID})
	return nil
}

func (s *MemoryStore) drop(key pair) {
	delete(s.requests, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *MemoryStore) Accept(_ context.Context, fromID, toID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.pending(fromID, toID); err != nil {
		return err
	}
	now := s.now()
	for _, key := range []pair{{fromID, toID}, {toID, fromID}} {
		if _, ok := s.friends[key]; !ok {
			s.friends[key] = now
		}
		s.drop(key)
	}
	return nil
}

func (s *MemoryStore) MarkViewed(_ context.Context, toID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for _, r := range s.requests {
		if r.ToID == toID && r.ViewedAt == nil {
			viewed := now
			r.ViewedAt = &viewed
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) list(match func(*Request) bool) []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Request
	for _, key := range s.order {
		if r := s.requests[key]; r.Pending() && match(r) {
			out = append(out, copyRequest(r))
		}
	}
	return out
}

func (s *MemoryStore) Received(_ context.Context, toID int64) ([]*Request, error) {
	return s.list(func(r *Request) bool { return r.ToID == toID }), nil
}

func (s *MemoryStore) Sent(_ context.Context, fromID int64) ([]*Request, error) {
	return s.list(func(r *Request) bool { return r.FromID == fromID }), nil
}

func (s *MemoryStore) UnviewedCount(_ context.Context, toID int64) (int, error) {
	return len(s.list(func(r *Request) bool { return r.ToID == toID && r.ViewedAt == nil })), nil
}

func (s *MemoryStore) AreFriends(_ context.Context, a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.friends[pair{a, b}]
	return ok, nil
}

func (s *MemoryStore) Friends(_ context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type edge struct {
		id int64
		at time.Time
	}
	var edges []edge
	for key, at := range s.friends {
		if key[0] == id {
			edges = append(edges, edge{key[1], at})
		}
	}
	slices.SortFunc(edges, func(x, y edge) int {
		if c := x.at.Compare(y.at); c != 0 {
			return c
		}
		return cmp.Compare(x.id, y.id)
	})
	ids := make([]int64, len(edges))
	for i, e := range edges {
		ids[i] = e.id
	}
	return ids, nil
}

func (s *MemoryStore) RemoveFriend(_ context.Context, a, b int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, key := range []pair{{a, b}, {b, a}} {
		if _, ok := s.friends[key]; ok {
			delete(s.friends, key)
			n++
		}
	}
	return n, nil
}

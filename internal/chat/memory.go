package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps rooms and messages in process.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int64
	rooms    map[[2]int64]*Room
	roomByID map[string]*Room
	messages map[string][]*Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		rooms:    make(map[[2]int64]*Room),
		roomByID: make(map[string]*Room),
		messages: make(map[string][]*Message),
	}
}

func (s *MemoryStore) FindOrCreateRoom(_ context.Context, low, high, createdBy int64) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int64{low, high}
	if room, ok := s.rooms[key]; ok {
		out := *room
		return &out, nil
	}
	room := &Room{ID: uuid.NewString(), LowID: low, HighID: high, CreatedBy: createdBy, CreatedAt: s.now()}
	s.rooms[key] = room
	s.roomByID[room.ID] = room
	out := *room
	return &out, nil
}

func (s *MemoryStore) InsertMessage(_ context.Context, m *Message) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roomByID[m.RoomID]; !ok {
		return nil, ErrRoomNotFound
	}
	stored := *m
	s.nextID++
	stored.ID = s.nextID
	stored.CreatedAt = s.now()
	if msgs := s.messages[m.RoomID]; len(msgs) > 0 {
		if last := msgs[len(msgs)-1].CreatedAt; stored.CreatedAt.Before(last) {
			stored.CreatedAt = last
		}
	}
	s.messages[m.RoomID] = append(s.messages[m.RoomID], &stored)
	out := stored
	return &out, nil
}

func (s *MemoryStore) FindMessages(_ context.Context, roomID string, limit int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.messages[roomID]
	out := make([]*Message, 0, min(limit, len(stored)))
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		m := *stored[i]
		out = append(out, &m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

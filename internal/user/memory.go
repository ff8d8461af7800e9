package user

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go-social/internal/domain"
)

// MemoryDirectory is the in-process directory used when no database is
// configured.
type MemoryDirectory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*User
	byName map[string]*User
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:   make(map[int64]*User),
		byName: make(map[string]*User),
	}
}

func (m *MemoryDirectory) CreateUser(_ context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[u.Username]; ok {
		return nil, domain.ErrAlreadyExists
	}
	m.nextID++
	stored := *u
	stored.ID = m.nextID
	m.byID[stored.ID] = &stored
	m.byName[stored.Username] = &stored
	out := stored
	return &out, nil
}

func (m *MemoryDirectory) GetUserByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryDirectory) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (m *MemoryDirectory) SearchUsers(_ context.Context, q string) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q = strings.ToLower(q)
	var users []User
	for _, u := range m.byName {
		if strings.Contains(strings.ToLower(u.Username), q) {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if len(users) > 10 {
		users = users[:10]
	}
	return users, nil
}

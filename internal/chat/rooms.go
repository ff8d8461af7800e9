package chat

import (
	"context"
	"fmt"

	"go-social/internal/domain"
)

// Rooms is the conversation registry.
type Rooms struct {
	store RoomStore
}

func NewRooms(store RoomStore) *Rooms {
	return &Rooms{store: store}
}

// GetOrCreate returns the one room of the pair, creating it on first contact.
// (a, b) and (b, a) resolve to the same room.
func (r *Rooms) GetOrCreate(ctx context.Context, a, b int64) (*Room, error) {
	if a == b {
		return nil, domain.ErrInvalidPair
	}
	if a <= 0 || b <= 0 {
		return nil, domain.ErrUnknownParticipant
	}
	low, high := a, b
	if low > high {
		low, high = high, low
	}
	room, err := r.store.FindOrCreateRoom(ctx, low, high, a)
	if err != nil {
		return nil, fmt.Errorf("rooms: get or create: %w", err)
	}
	return room, nil
}

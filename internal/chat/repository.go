package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-social/internal/db"

	"github.com/google/uuid"
)

// RoomStore finds or creates the room of an ordered (low < high) pair in one
// atomic step.
type RoomStore interface {
	FindOrCreateRoom(ctx context.Context, low, high, createdBy int64) (*Room, error)
}

type MessageStore interface {
	InsertMessage(ctx context.Context, m *Message) (*Message, error)
	// FindMessages returns at most limit messages of the room, newest first.
	FindMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)
}

var ErrRoomNotFound = errors.New("room not found")

type Repository struct {
	db *sql.DB
	tx *db.TxManager
}

func NewRepository(conn *sql.DB, tx *db.TxManager) *Repository {
	return &Repository{db: conn, tx: tx}
}

func (r *Repository) FindOrCreateRoom(ctx context.Context, low, high, createdBy int64) (*Room, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO rooms (id, participant_low, participant_high, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_low, participant_high)
		DO UPDATE SET participant_low = EXCLUDED.participant_low
		RETURNING id, participant_low, participant_high, created_by, created_at
	`
	room := &Room{}
	exec := db.GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, query, uuid.New(), low, high, createdBy).
		Scan(&room.ID, &room.LowID, &room.HighID, &room.CreatedBy, &room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("find or create room: %w", err)
	}
	return room, nil
}

// InsertMessage locks the room row so created_at never goes backwards
// within a room.
func (r *Repository) InsertMessage(ctx context.Context, m *Message) (*Message, error) {
	out := *m
	err := r.tx.WithTx(ctx, func(ctx context.Context) error {
		exec := db.GetExecutor(ctx, r.db)

		var id string
		if err := exec.QueryRowContext(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, m.RoomID).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoomNotFound
			}
			return err
		}

		query := `
			INSERT INTO messages (room_id, author_id, recipient_id, content, created_at)
			SELECT $1, $2, $3, $4, GREATEST(clock_timestamp(), COALESCE(MAX(created_at), clock_timestamp()))
			FROM messages WHERE room_id = $1
			RETURNING id, created_at
		`
		return exec.QueryRowContext(ctx, query, m.RoomID, m.AuthorID, m.RecipientID, m.Content).
			Scan(&out.ID, &out.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &out, nil
}

func (r *Repository) FindMessages(ctx context.Context, roomID string, limit int) ([]*Message, error) {
	query := `
		SELECT id, room_id, author_id, recipient_id, content, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.AuthorID, &msg.RecipientID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

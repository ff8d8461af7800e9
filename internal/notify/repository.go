package notify

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go-social/internal/db"
)

type Store interface {
	Insert(ctx context.Context, n *Notification) (*Notification, error)
	// NewestUnread returns at most limit unread notifications of the scope,
	// newest first. An empty scope verb matches every verb.
	NewestUnread(ctx context.Context, scope Scope, limit int) ([]*Notification, error)
	UnreadCount(ctx context.Context, recipientID int64) (int, error)
	// MarkRead clears the unread flag of the recipient's notifications among
	// ids. Ids belonging to someone else are ignored.
	MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error)
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
	// List returns the recipient's notifications, newest first.
	List(ctx context.Context, recipientID int64, limit int) ([]*Notification, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const notificationColumns = `id, recipient_id, actor_id, verb, description, unread, created_at`

func (r *Repository) Insert(ctx context.Context, n *Notification) (*Notification, error) {
	query := `
		INSERT INTO notifications (recipient_id, actor_id, verb, description)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + notificationColumns
	out := &Notification{}
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, n.RecipientID, n.ActorID, n.Verb, n.Description).
		Scan(&out.ID, &out.RecipientID, &out.ActorID, &out.Verb, &out.Description, &out.Unread, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return out, nil
}

func (r *Repository) NewestUnread(ctx context.Context, scope Scope, limit int) ([]*Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1 AND unread AND ($2 = '' OR verb = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	return r.query(ctx, query, scope.RecipientID, string(scope.Verb), limit)
}

func (r *Repository) List(ctx context.Context, recipientID int64, limit int) ([]*Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.query(ctx, query, recipientID, limit)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*Notification, error) {
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.ActorID, &n.Verb, &n.Description, &n.Unread, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	var n int
	err := db.GetExecutor(ctx, r.db).
		QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE recipient_id = $1 AND unread`, recipientID).
		Scan(&n)
	return n, err
}

func (r *Repository) MarkRead(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, recipientID)
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}
	query := `UPDATE notifications SET unread = FALSE WHERE recipient_id = $1 AND unread AND id IN (` +
		strings.Join(placeholders, ", ") + `)`
	return r.exec(ctx, query, args...)
}

func (r *Repository) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	return r.exec(ctx, `UPDATE notifications SET unread = FALSE WHERE recipient_id = $1 AND unread`, recipientID)
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package friends

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-social/internal/db"
	"go-social/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

type Store interface {
	// CreateRequest fails with domain.ErrAlreadyExists when a request
	// between the two users exists in either direction, rejected or not.
	CreateRequest(ctx context.Context, r *Request) (*Request, error)
	// GetRequest returns domain.ErrRequestNotFound when absent.
	GetRequest(ctx context.Context, fromID, toID int64) (*Request, error)
	RejectRequest(ctx context.Context, fromID, toID int64) error
	DeleteRequest(ctx context.Context, fromID, toID int64) error
	// Accept turns the request into a friendship in both directions and
	// drops any reciprocal request, atomically.
	Accept(ctx context.Context, fromID, toID int64) error
	MarkViewed(ctx context.Context, toID int64) (int64, error)
	// Received and Sent list pending requests oldest first.
	Received(ctx context.Context, toID int64) ([]*Request, error)
	Sent(ctx context.Context, fromID int64) ([]*Request, error)
	UnviewedCount(ctx context.Context, toID int64) (int, error)

	AreFriends(ctx context.Context, a, b int64) (bool, error)
	Friends(ctx context.Context, id int64) ([]int64, error)
	RemoveFriend(ctx context.Context, a, b int64) (int64, error)
}

type Repository struct {
	db *sql.DB
	tx *db.TxManager
}

func NewRepository(conn *sql.DB, tx *db.TxManager) *Repository {
	return &Repository{db: conn, tx: tx}
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const requestColumns = `id, from_user_id, to_user_id, message, created_at, rejected_at, viewed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*Request, error) {
	r := &Request{}
	var rejected, viewed sql.NullTime
	if err := row.Scan(&r.ID, &r.FromID, &r.ToID, &r.Message, &r.CreatedAt, &rejected, &viewed); err != nil {
		return nil, err
	}
	if rejected.Valid {
		r.RejectedAt = &rejected.Time
	}
	if viewed.Valid {
		r.ViewedAt = &viewed.Time
	}
	return r, nil
}

func (r *Repository) CreateRequest(ctx context.Context, req *Request) (*Request, error) {
	query := `
		INSERT INTO friendship_requests (from_user_id, to_user_id, message)
		VALUES ($1, $2, $3)
		RETURNING ` + requestColumns
	out, err := scanRequest(db.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, req.FromID, req.ToID, req.Message))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("create friendship request: %w", err)
	}
	return out, nil
}

func (r *Repository) GetRequest(ctx context.Context, fromID, toID int64) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM friendship_requests WHERE from_user_id = $1 AND to_user_id = $2`
	req, err := scanRequest(db.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, fromID, toID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRequestNotFound
	}
	return req, err
}

func (r *Repository) RejectRequest(ctx context.Context, fromID, toID int64) error {
	return r.affectOne(ctx, `
		UPDATE friendship_requests SET rejected_at = now()
		WHERE from_user_id = $1 AND to_user_id = $2 AND rejected_at IS NULL`, fromID, toID)
}

func (r *Repository) DeleteRequest(ctx context.Context, fromID, toID int64) error {
	return r.affectOne(ctx, `
		DELETE FROM friendship_requests
		WHERE from_user_id = $1 AND to_user_id = $2 AND rejected_at IS NULL`, fromID, toID)
}

// affectOne runs a statement that must touch the pending request.
func (r *Repository) affectOne(ctx context.Context, query string, fromID, toID int64) error {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, query, fromID, toID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (r *Repository) Accept(ctx context.Context, fromID, toID int64) error {
	return r.tx.WithTx(ctx, func(ctx context.Context) error {
		exec := db.GetExecutor(ctx, r.db)

		var id int64
		err := exec.QueryRowContext(ctx, `
			SELECT id FROM friendship_requests
			WHERE from_user_id = $1 AND to_user_id = $2 AND rejected_at IS NULL
			FOR UPDATE`, fromID, toID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		if _, err := exec.ExecContext(ctx, `
			INSERT INTO friends (from_user_id, to_user_id) VALUES ($1, $2), ($2, $1)
			ON CONFLICT DO NOTHING`, fromID, toID); err != nil {
			return fmt.Errorf("insert friends: %w", err)
		}
		if _, err := exec.ExecContext(ctx, `
			DELETE FROM friendship_requests
			WHERE (from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)`,
			fromID, toID); err != nil {
			return fmt.Errorf("delete requests: %w", err)
		}
		return nil
	})
}

func (r *Repository) MarkViewed(ctx context.Context, toID int64) (int64, error) {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx,
		`UPDATE friendship_requests SET viewed_at = now() WHERE to_user_id = $1 AND viewed_at IS NULL`, toID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) Received(ctx context.Context, toID int64) ([]*Request, error) {
	return r.listRequests(ctx, `
		SELECT `+requestColumns+` FROM friendship_requests
		WHERE to_user_id = $1 AND rejected_at IS NULL
		ORDER BY created_at, id`, toID)
}

func (r *Repository) Sent(ctx context.Context, fromID int64) ([]*Request, error) {
	return r.listRequests(ctx, `
		SELECT `+requestColumns+` FROM friendship_requests
		WHERE from_user_id = $1 AND rejected_at IS NULL
		ORDER BY created_at, id`, fromID)
}

func (r *Repository) listRequests(ctx context.Context, query string, id int64) ([]*Request, error) {
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *Repository) UnviewedCount(ctx context.Context, toID int64) (int, error) {
	var n int
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT count(*) FROM friendship_requests
		WHERE to_user_id = $1 AND viewed_at IS NULL AND rejected_at IS NULL`, toID).Scan(&n)
	return n, err
}

func (r *Repository) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	var ok bool
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM friends WHERE from_user_id = $1 AND to_user_id = $2)`, a, b).Scan(&ok)
	return ok, err
}

func (r *Repository) Friends(ctx context.Context, id int64) ([]int64, error) {
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx,
		`SELECT to_user_id FROM friends WHERE from_user_id = $1 ORDER BY created_at, to_user_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var fid int64
		if err := rows.Scan(&fid); err != nil {
			return nil, err
		}
		ids = append(ids, fid)
	}
	return ids, rows.Err()
}

func (r *Repository) RemoveFriend(ctx context.Context, a, b int64) (int64, error) {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `
		DELETE FROM friends
		WHERE (from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)`, a, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

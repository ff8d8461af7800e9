package user

import (
	"context"
	"database/sql"
	"errors"

	"go-social/internal/db"
	"go-social/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

const userColumns = "id, username, first_name, last_name, gender"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Gender); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, u *User) (*User, error) {
	query := `INSERT INTO users (username, first_name, last_name, gender) VALUES ($1, $2, $3, $4) RETURNING id`
	exec := db.GetExecutor(ctx, r.db)
	if err := exec.QueryRowContext(ctx, query, u.Username, u.FirstName, u.LastName, u.Gender).Scan(&u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = $1"
	return scanUser(db.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = $1"
	return scanUser(db.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, username))
}

func (r *Repository) SearchUsers(ctx context.Context, q string) ([]User, error) {
	// We limit to 10 to keep it fast
	query := "SELECT " + userColumns + " FROM users WHERE username ILIKE $1 ORDER BY username LIMIT 10"
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, query, "%"+q+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

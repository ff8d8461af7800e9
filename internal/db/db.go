package db

import (
	"context"
	"database/sql"
	"fmt"

	"go-social/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(ctx context.Context, cfg *config.PostgresConfig) (*Database, error) {
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &Database{Conn: conn}, nil
}

func (d *Database) Close() error { return d.Conn.Close() }

func (d *Database) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            username VARCHAR(150) UNIQUE NOT NULL,
            first_name VARCHAR(150) NOT NULL DEFAULT '',
            last_name VARCHAR(150) NOT NULL DEFAULT '',
            gender VARCHAR(16) NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS rooms (
            id UUID PRIMARY KEY,
            participant_low BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            participant_high BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            CHECK (participant_low < participant_high),
            UNIQUE (participant_low, participant_high)
        )`,

		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            recipient_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS messages_room_created_idx ON messages (room_id, created_at DESC, id DESC)`,

		`CREATE TABLE IF NOT EXISTS friendship_requests (
            id BIGSERIAL PRIMARY KEY,
            from_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            to_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            message TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            rejected_at TIMESTAMPTZ,
            viewed_at TIMESTAMPTZ,
            UNIQUE (from_user_id, to_user_id)
        )`,
		// At most one request per unordered pair, so reciprocal sends race
		// on a single row.
		`CREATE UNIQUE INDEX IF NOT EXISTS friendship_requests_pair_idx
            ON friendship_requests (LEAST(from_user_id, to_user_id), GREATEST(from_user_id, to_user_id))`,

		`CREATE TABLE IF NOT EXISTS friends (
            from_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            to_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (from_user_id, to_user_id)
        )`,

		`CREATE TABLE IF NOT EXISTS notifications (
            id BIGSERIAL PRIMARY KEY,
            recipient_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            actor_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            verb VARCHAR(32) NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            unread BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS notifications_recipient_idx ON notifications (recipient_id, unread, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := d.Conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Package dbtest opens the integration database for repository tests.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"go-social/internal/config"
	"go-social/internal/db"
)

// Open skips the test unless TEST_DATABASE_URL points at a reachable postgres.
func Open(t testing.TB) *db.Database {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres test")
	}
	ctx := context.Background()
	database, err := db.NewDatabase(ctx, &config.PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		PingTimeout:     5 * time.Second,
	})
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	if err := database.AutoMigrate(ctx); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// Truncate clears every table between tests.
func Truncate(t testing.TB, database *db.Database) {
	t.Helper()
	_, err := database.Conn.ExecContext(context.Background(),
		`TRUNCATE notifications, friends, friendship_requests, messages, rooms, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// CreateUser inserts a bare user row and returns its id.
func CreateUser(t testing.TB, database *db.Database, username string) int64 {
	t.Helper()
	var id int64
	err := database.Conn.QueryRowContext(context.Background(),
		`INSERT INTO users (username, first_name, last_name, gender) VALUES ($1, $1, 'Test', 'F') RETURNING id`,
		username).Scan(&id)
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return id
}

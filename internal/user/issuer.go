package user

import (
	"context"
	"fmt"
	"slices"

	"go-social/internal/config"
	"go-social/internal/db"
)

// Issuer mints tokens for users of the directory a server with the same
// configuration uses.
type Issuer struct {
	svc    *Service
	cfg    *config.Config
	close  func()
	memory bool
}

// NewIssuer opens the configured directory. In memory mode it replays
// SEED_USERS in order, which reproduces the ids the server assigned.
func NewIssuer(ctx context.Context, cfg *config.Config) (*Issuer, error) {
	if cfg.UseMemoryStore() {
		svc := NewService(NewMemoryDirectory(), cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if _, err := svc.Seed(ctx, cfg.Service.SeedUsers...); err != nil {
			return nil, err
		}
		return &Issuer{svc: svc, cfg: cfg, close: func() {}, memory: true}, nil
	}

	database, err := db.NewDatabase(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.AutoMigrate(ctx); err != nil {
		_ = database.Close()
		return nil, err
	}
	svc := NewService(NewRepository(database.Conn), cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	return &Issuer{svc: svc, cfg: cfg, close: func() { _ = database.Close() }}, nil
}

func (i *Issuer) Close() { i.close() }

// Token returns a signed token for username, creating the user in postgres
// mode when absent.
func (i *Issuer) Token(ctx context.Context, username string) (string, *User, error) {
	if i.memory && !slices.Contains(i.cfg.Service.SeedUsers, username) {
		return "", nil, fmt.Errorf("%q is not in SEED_USERS; the in-memory server does not know it", username)
	}
	users, err := i.svc.Seed(ctx, username)
	if err != nil {
		return "", nil, err
	}
	token, err := i.svc.IssueToken(users[0], i.cfg.Auth.TokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, users[0], nil
}

package user

import (
	"context"
	"testing"
	"time"

	"go-social/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuerReplaysSeedOrder(t *testing.T) {
	cfg := &config.Config{
		Service:  &config.ServiceConfig{SeedUsers: []string{"alice", "bob"}},
		Postgres: &config.PostgresConfig{},
		Auth:     &config.AuthConfig{JWTSecret: "secret", Issuer: "go-social", TokenTTL: time.Hour},
	}
	ctx := context.Background()

	issuer, err := NewIssuer(ctx, cfg)
	require.NoError(t, err)
	defer issuer.Close()

	// The server seeds the same list into its own directory.
	server := NewService(NewMemoryDirectory(), "secret", "go-social")
	seeded, err := server.Seed(ctx, cfg.Service.SeedUsers...)
	require.NoError(t, err)

	token, u, err := issuer.Token(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, seeded[1].ID, u.ID)

	id, err := server.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: seeded[1].ID, Username: "bob"}, id)

	_, _, err = issuer.Token(ctx, "mallory")
	assert.Error(t, err)
}

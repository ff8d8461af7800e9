package user

import (
	"context"
	"testing"

	"go-social/internal/db/dbtest"
	"go-social/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	database := dbtest.Open(t)
	dbtest.Truncate(t, database)
	repo := NewRepository(database.Conn)
	ctx := context.Background()

	alice, err := repo.CreateUser(ctx, &User{Username: "alice", FirstName: "Alice", Gender: "F"})
	require.NoError(t, err)

	got, err := repo.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = repo.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	found, err := repo.SearchUsers(ctx, "ALI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].ID)
}

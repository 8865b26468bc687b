package service

import (
	"context"
	"testing"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Sync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	user, err := env.users.Sync(ctx, 42, "alice", entity.PlatformModerator)
	require.NoError(t, err)
	assert.Equal(t, entity.PlatformModerator, user.PlatformRole)

	user, err = env.users.Sync(ctx, 42, "alice2", "superuser")
	require.NoError(t, err)
	assert.Equal(t, entity.PlatformUser, user.PlatformRole)

	stored, err := env.users.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice2", stored.Username)

	_, err = env.users.Get(ctx, 404)
	assert.ErrorIs(t, err, errorz.ErrUserNotFound)
}

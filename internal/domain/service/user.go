package service

import (
	"context"
	"fmt"

	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/aficionados/clubs/pkg/logger/types"
)

type UserStorage interface {
	Upsert(ctx context.Context, user *entity.User) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
}

// UserService mirrors identities from the authentication layer so memberships
// can reference them.
type UserService struct {
	logger  *types.Logger
	storage UserStorage
}

func NewUserService(logger *types.Logger, storage UserStorage) *UserService {
	return &UserService{
		logger:  logger,
		storage: storage,
	}
}

// Sync stores the verified identity; unknown platform roles fall back to user.
func (s *UserService) Sync(ctx context.Context, id int64, username string, platformRole entity.PlatformRole) (*entity.User, error) {
	if !platformRole.Valid() {
		s.logger.Warnf("(user: %d) unknown platform role %q, using %q", id, platformRole, entity.PlatformUser)
		platformRole = entity.PlatformUser
	}

	user, err := s.storage.Upsert(ctx, &entity.User{
		ID:           id,
		Username:     username,
		PlatformRole: platformRole,
	})
	if err != nil {
		return nil, fmt.Errorf("sync user: %w", err)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*entity.User, error) {
	return s.storage.Get(ctx, id)
}

package service

import (
	"context"
	"fmt"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/aficionados/clubs/internal/domain/utils/validator"
	"github.com/aficionados/clubs/pkg/logger/types"
)

type BanStorage interface {
	Ban(ctx context.Context, ban *entity.Ban) error
	IsBanned(ctx context.Context, clubID string, userID int64) (bool, error)
	Delete(ctx context.Context, clubID string, userID int64) error
	List(ctx context.Context, clubID string, page dto.Page) ([]entity.Ban, int64, error)
}

type banMemberStorage interface {
	Get(ctx context.Context, clubID string, userID int64) (*entity.Membership, error)
}

type BanService struct {
	logger *types.Logger

	storage       BanStorage
	memberStorage banMemberStorage
}

func NewBanService(logger *types.Logger, storage BanStorage, memberStorage banMemberStorage) *BanService {
	return &BanService{
		logger:        logger,
		storage:       storage,
		memberStorage: memberStorage,
	}
}

// Ban removes a plain member from the club and bars them from rejoining.
func (s *BanService) Ban(ctx context.Context, clubID string, userID, bannedBy int64, reason string) error {
	if !validator.BanReason(reason) {
		return errorz.ErrInvalidReason
	}

	membership, err := s.memberStorage.Get(ctx, clubID, userID)
	if err != nil {
		return err
	}
	switch membership.Role {
	case entity.RoleMember:
	case entity.RoleOwner, entity.RoleAdmin:
		return errorz.ErrCannotBanPrivileged
	default:
		return errorz.ErrInvalidRole
	}

	banned, err := s.storage.IsBanned(ctx, clubID, userID)
	if err != nil {
		return fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return errorz.ErrAlreadyBanned
	}

	err = s.storage.Ban(ctx, &entity.Ban{
		ClubID:   clubID,
		UserID:   userID,
		BannedBy: bannedBy,
		Reason:   reason,
	})
	if err != nil {
		if errorz.Kind(err) != nil {
			return err
		}
		return fmt.Errorf("ban member: %w", err)
	}

	s.logger.Infof("(user: %d) banned from club %s by %d", userID, clubID, bannedBy)
	return nil
}

// Unban lifts a ban; errorz.ErrNotBanned if there is none.
func (s *BanService) Unban(ctx context.Context, clubID string, userID int64) error {
	if err := s.storage.Delete(ctx, clubID, userID); err != nil {
		if errorz.Kind(err) != nil {
			return err
		}
		return fmt.Errorf("unban member: %w", err)
	}
	s.logger.Infof("(user: %d) unbanned from club %s", userID, clubID)
	return nil
}

func (s *BanService) IsBanned(ctx context.Context, clubID string, userID int64) (bool, error) {
	return s.storage.IsBanned(ctx, clubID, userID)
}

func (s *BanService) List(ctx context.Context, clubID string, page dto.Page) (dto.PageResult[entity.Ban], error) {
	bans, total, err := s.storage.List(ctx, clubID, page)
	if err != nil {
		return dto.PageResult[entity.Ban]{}, fmt.Errorf("list bans: %w", err)
	}
	return dto.NewPageResult(bans, total, page), nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"gorm.io/gorm"
)

type BanStorage struct {
	db *gorm.DB
}

func NewBanStorage(db *gorm.DB) *BanStorage {
	return &BanStorage{
		db: db,
	}
}

// Ban removes the user's membership and pending join request and records the
// ban in one transaction. Only plain members can be banned.
func (s *BanStorage) Ban(ctx context.Context, ban *entity.Ban) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockClub(tx, ban.ClubID); err != nil {
			return err
		}

		removed := tx.Where("club_id = ? AND user_id = ? AND role = ?", ban.ClubID, ban.UserID, entity.RoleMember).
			Delete(&entity.Membership{})
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected == 0 {
			var membership entity.Membership
			err := tx.Where("club_id = ? AND user_id = ?", ban.ClubID, ban.UserID).First(&membership).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorz.ErrMemberNotFound
			}
			if err != nil {
				return err
			}
			return errorz.ErrCannotBanPrivileged
		}

		if err := dropPendingRequests(tx, ban.ClubID, ban.UserID); err != nil {
			return err
		}
		if err := tx.Create(ban).Error; err != nil {
			if isUniqueViolation(err) {
				return errorz.ErrAlreadyBanned
			}
			return err
		}
		return nil
	})
}

func (s *BanStorage) IsBanned(ctx context.Context, clubID string, userID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.Ban{}).
		Where("club_id = ? AND user_id = ?", clubID, userID).
		Count(&count).Error
	return count > 0, err
}

// Delete lifts a ban; errorz.ErrNotBanned when there is none.
func (s *BanStorage) Delete(ctx context.Context, clubID string, userID int64) error {
	result := s.db.WithContext(ctx).Where("club_id = ? AND user_id = ?", clubID, userID).Delete(&entity.Ban{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errorz.ErrNotBanned
	}
	return nil
}

func (s *BanStorage) List(ctx context.Context, clubID string, page dto.Page) ([]entity.Ban, int64, error) {
	query := s.db.WithContext(ctx).Model(&entity.Ban{}).Where("club_id = ?", clubID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var bans []entity.Ban
	err := query.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&bans).Error
	return bans, total, err
}

package postgres

import (
	"context"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"gorm.io/gorm"
)

type ClubStorage struct {
	db *gorm.DB
}

func NewClubStorage(db *gorm.DB) *ClubStorage {
	return &ClubStorage{
		db: db,
	}
}

// CreateWithOwner creates the club and its owner membership in one transaction.
func (s *ClubStorage) CreateWithOwner(ctx context.Context, club *entity.Club) (*entity.Club, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(club).Error; err != nil {
			return err
		}
		return tx.Create(&entity.Membership{
			ClubID: club.ID,
			UserID: club.CreatedBy,
			Role:   entity.RoleOwner,
		}).Error
	})
	if isUniqueViolation(err) {
		return nil, clubConflict(err)
	}
	if err != nil {
		return nil, err
	}
	return club, nil
}

func (s *ClubStorage) Get(ctx context.Context, id string) (*entity.Club, error) {
	var club entity.Club
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&club).Error
	if err != nil {
		return nil, notFound(err, errorz.ErrClubNotFound)
	}
	return &club, nil
}

// GetByInviteCode returns the private club holding code.
func (s *ClubStorage) GetByInviteCode(ctx context.Context, code string) (*entity.Club, error) {
	var club entity.Club
	err := s.db.WithContext(ctx).
		Where("invite_code = ? AND visibility = ?", code, entity.VisibilityPrivate).
		First(&club).Error
	if err != nil {
		return nil, notFound(err, errorz.ErrInvalidCode)
	}
	return &club, nil
}

// NameTaken reports whether another club already uses name, ignoring case.
// excludeID skips the club being renamed.
func (s *ClubStorage) NameTaken(ctx context.Context, name string, excludeID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&entity.Club{}).Where("name_key = ?", entity.ClubNameKey(name))
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func (s *ClubStorage) Update(ctx context.Context, club *entity.Club) (*entity.Club, error) {
	err := s.db.WithContext(ctx).Save(club).Error
	if isUniqueViolation(err) {
		return nil, clubConflict(err)
	}
	if err != nil {
		return nil, err
	}
	return club, nil
}

// Delete removes a club together with its join requests, bans and memberships.
func (s *ClubStorage) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("club_id = ?", id).Delete(&entity.JoinRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("club_id = ?", id).Delete(&entity.Ban{}).Error; err != nil {
			return err
		}
		if err := tx.Where("club_id = ?", id).Delete(&entity.Membership{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&entity.Club{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errorz.ErrClubNotFound
		}
		return nil
	})
}

func (s *ClubStorage) List(ctx context.Context, filter dto.ClubFilter, page dto.Page) ([]entity.Club, int64, error) {
	query := s.db.WithContext(ctx).Model(&entity.Club{})
	if !filter.IncludeArchived {
		query = query.Where("archived = ?", false)
	}
	if filter.Visibility != nil {
		query = query.Where("visibility = ?", *filter.Visibility)
	}
	if filter.Search != "" {
		query = query.Where("name_key LIKE ?", "%"+entity.ClubNameKey(filter.Search)+"%")
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var clubs []entity.Club
	err := query.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&clubs).Error
	return clubs, total, err
}

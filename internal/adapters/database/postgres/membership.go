package postgres

import (
	"context"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"gorm.io/gorm"
)

const roleOrder = "CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END"

type MembershipStorage struct {
	db *gorm.DB
}

func NewMembershipStorage(db *gorm.DB) *MembershipStorage {
	return &MembershipStorage{
		db: db,
	}
}

// Create adds a membership. The ban list and member limit are checked again
// under the club row lock; a duplicate (club, user) pair surfaces as
// errorz.ErrMemberAlreadyExists. A pending join request of the new member is
// dropped in the same transaction.
func (s *MembershipStorage) Create(ctx context.Context, membership *entity.Membership) (*entity.Membership, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := joinClub(tx, membership); err != nil {
			return err
		}
		return dropPendingRequests(tx, membership.ClubID, membership.UserID)
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (s *MembershipStorage) Get(ctx context.Context, clubID string, userID int64) (*entity.Membership, error) {
	var membership entity.Membership
	err := s.db.WithContext(ctx).Where("club_id = ? AND user_id = ?", clubID, userID).First(&membership).Error
	if err != nil {
		return nil, notFound(err, errorz.ErrMemberNotFound)
	}
	return &membership, nil
}

// Delete removes a non-owner membership. Deleting a missing row is not an error.
func (s *MembershipStorage) Delete(ctx context.Context, clubID string, userID int64) error {
	return s.db.WithContext(ctx).
		Where("club_id = ? AND user_id = ? AND role <> ?", clubID, userID, entity.RoleOwner).
		Delete(&entity.Membership{}).Error
}

// UpdateRole changes the role of a non-owner member.
func (s *MembershipStorage) UpdateRole(ctx context.Context, clubID string, userID int64, role entity.Role) (*entity.Membership, error) {
	result := s.db.WithContext(ctx).Model(&entity.Membership{}).
		Where("club_id = ? AND user_id = ? AND role <> ?", clubID, userID, entity.RoleOwner).
		Update("role", role)
	if result.Error != nil {
		return nil, result.Error
	}

	membership, err := s.Get(ctx, clubID, userID)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 && membership.Role == entity.RoleOwner {
		return nil, errorz.ErrOwnerRoleChange
	}
	return membership, nil
}

// TransferOwnership demotes the current owner to admin and promotes the new
// owner in one transaction, so every committed state has exactly one owner.
func (s *MembershipStorage) TransferOwnership(ctx context.Context, clubID string, currentOwnerID, newOwnerID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockClub(tx, clubID); err != nil {
			return err
		}

		demote := tx.Model(&entity.Membership{}).
			Where("club_id = ? AND user_id = ? AND role = ?", clubID, currentOwnerID, entity.RoleOwner).
			Update("role", entity.RoleAdmin)
		if demote.Error != nil {
			return demote.Error
		}
		if demote.RowsAffected == 0 {
			return errorz.ErrNotOwner
		}

		promote := tx.Model(&entity.Membership{}).
			Where("club_id = ? AND user_id = ?", clubID, newOwnerID).
			Update("role", entity.RoleOwner)
		if promote.Error != nil {
			return promote.Error
		}
		if promote.RowsAffected == 0 {
			return errorz.ErrMemberNotFound
		}
		return nil
	})
}

func (s *MembershipStorage) Count(ctx context.Context, clubID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.Membership{}).Where("club_id = ?", clubID).Count(&count).Error
	return count, err
}

// CountByClubIDs returns member counts keyed by club id; clubs without members
// are absent from the map.
func (s *MembershipStorage) CountByClubIDs(ctx context.Context, clubIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(clubIDs))
	if len(clubIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ClubID string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&entity.Membership{}).
		Select("club_id, count(*) AS count").
		Where("club_id IN ?", clubIDs).
		Group("club_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ClubID] = row.Count
	}
	return counts, nil
}

// List pages through a club's members: owner, then admins, then members, each
// group by join time.
func (s *MembershipStorage) List(ctx context.Context, clubID string, filter dto.MemberFilter, page dto.Page) ([]entity.Membership, int64, error) {
	query := s.db.WithContext(ctx).Model(&entity.Membership{}).Where("club_id = ?", clubID)
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var memberships []entity.Membership
	err := query.Order(roleOrder).Order("joined_at ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&memberships).Error
	return memberships, total, err
}

// OwnershipViolations returns clubs that do not have exactly one owner.
func (s *MembershipStorage) OwnershipViolations(ctx context.Context) ([]dto.OwnershipViolation, error) {
	var violations []dto.OwnershipViolation
	err := s.db.WithContext(ctx).Raw(`
		SELECT clubs.id AS club_id, COUNT(m.user_id) AS owners
		FROM clubs
		LEFT JOIN club_memberships m ON m.club_id = clubs.id AND m.role = ?
		GROUP BY clubs.id
		HAVING COUNT(m.user_id) <> 1`, entity.RoleOwner).
		Scan(&violations).Error
	return violations, err
}

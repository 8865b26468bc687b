package postgres

import (
	"context"
	"time"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const statusOrder = "CASE status WHEN 'PENDING' THEN 0 ELSE 1 END"

type JoinRequestStorage struct {
	db *gorm.DB
}

func NewJoinRequestStorage(db *gorm.DB) *JoinRequestStorage {
	return &JoinRequestStorage{
		db: db,
	}
}

// Create stores a new request. The partial unique index on pending requests
// turns a concurrent duplicate into errorz.ErrAlreadyApplied.
func (s *JoinRequestStorage) Create(ctx context.Context, request *entity.JoinRequest) (*entity.JoinRequest, error) {
	err := s.db.WithContext(ctx).Create(request).Error
	if isUniqueViolation(err) {
		return nil, errorz.ErrAlreadyApplied
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *JoinRequestStorage) Get(ctx context.Context, id string) (*entity.JoinRequest, error) {
	var request entity.JoinRequest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		return nil, notFound(err, errorz.ErrJoinRequestNotFound)
	}
	return &request, nil
}

// GetLatest returns the most recent request of userID to clubID.
func (s *JoinRequestStorage) GetLatest(ctx context.Context, clubID string, userID int64) (*entity.JoinRequest, error) {
	var request entity.JoinRequest
	err := s.db.WithContext(ctx).
		Where("club_id = ? AND user_id = ?", clubID, userID).
		Order("created_at DESC").
		First(&request).Error
	if err != nil {
		return nil, notFound(err, errorz.ErrJoinRequestNotFound)
	}
	return &request, nil
}

// DeleteProcessed clears approved and rejected requests of the pair so the
// user can apply again.
func (s *JoinRequestStorage) DeleteProcessed(ctx context.Context, clubID string, userID int64) error {
	return s.db.WithContext(ctx).
		Where("club_id = ? AND user_id = ? AND status <> ?", clubID, userID, entity.JoinRequestPending).
		Delete(&entity.JoinRequest{}).Error
}

// DeletePending removes a pending request; errorz.ErrRequestProcessed when the
// request is no longer pending.
func (s *JoinRequestStorage) DeletePending(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, entity.JoinRequestPending).
		Delete(&entity.JoinRequest{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errorz.ErrRequestProcessed
	}
	return nil
}

// Approve adds the requester as a member and marks the request approved in a
// single transaction.
func (s *JoinRequestStorage) Approve(ctx context.Context, id string, reviewerID int64) (*entity.JoinRequest, *entity.Membership, error) {
	var (
		request    entity.JoinRequest
		membership *entity.Membership
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&request).Error
		if err != nil {
			return notFound(err, errorz.ErrJoinRequestNotFound)
		}
		if !request.IsPending() {
			return errorz.ErrRequestProcessed
		}

		membership = &entity.Membership{
			ClubID: request.ClubID,
			UserID: request.UserID,
			Role:   entity.RoleMember,
		}
		if err = joinClub(tx, membership); err != nil {
			return err
		}

		now := time.Now()
		request.Status = entity.JoinRequestApproved
		request.ReviewedBy = &reviewerID
		request.ReviewedAt = &now
		return tx.Save(&request).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &request, membership, nil
}

// Reject marks a pending request rejected.
func (s *JoinRequestStorage) Reject(ctx context.Context, id string, reviewerID int64) (*entity.JoinRequest, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&entity.JoinRequest{}).
		Where("id = ? AND status = ?", id, entity.JoinRequestPending).
		Updates(map[string]interface{}{
			"status":      entity.JoinRequestRejected,
			"reviewed_by": reviewerID,
			"reviewed_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	request, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return nil, errorz.ErrRequestProcessed
	}
	return request, nil
}

// List pages through requests, pending first, newest first within each group.
func (s *JoinRequestStorage) List(ctx context.Context, filter dto.JoinRequestFilter, page dto.Page) ([]entity.JoinRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&entity.JoinRequest{})
	if filter.ClubID != "" {
		query = query.Where("club_id = ?", filter.ClubID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	var requests []entity.JoinRequest
	err := query.Order(statusOrder).Order("created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&requests).Error
	return requests, total, err
}

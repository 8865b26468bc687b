package entity

import (
	"time"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "PENDING"
	JoinRequestApproved JoinRequestStatus = "APPROVED"
	JoinRequestRejected JoinRequestStatus = "REJECTED"
)

func ParseJoinRequestStatus(s string) (JoinRequestStatus, error) {
	st := JoinRequestStatus(s)
	if !st.Valid() {
		return "", errorz.ErrInvalidStatus
	}
	return st, nil
}

func (s JoinRequestStatus) Valid() bool {
	switch s {
	case JoinRequestPending, JoinRequestApproved, JoinRequestRejected:
		return true
	default:
		return false
	}
}

// JoinRequest is an application to a club that does not approve members
// automatically. At most one PENDING request exists per (club, user); a
// partial unique index enforces it (see Migrate).
type JoinRequest struct {
	ID         string            `gorm:"primaryKey;type:uuid"`
	ClubID     string            `gorm:"not null;type:uuid;index"`
	UserID     int64             `gorm:"not null;index"`
	Status     JoinRequestStatus `gorm:"type:varchar(16);not null"`
	Message    string
	ReviewedBy *int64
	ReviewedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (JoinRequest) TableName() string { return "club_join_requests" }

func (r *JoinRequest) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (r *JoinRequest) IsPending() bool {
	return r.Status == JoinRequestPending
}

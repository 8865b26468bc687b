package entity

import (
	"time"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", errorz.ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

// Rank orders roles for listings: owner first, then admins, then members.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	case RoleMember:
		return 2
	default:
		return 3
	}
}

func (r Role) String() string {
	return string(r)
}

// Membership is the club × user → role relation. The composite primary key is
// what actually prevents duplicate memberships under concurrent joins.
type Membership struct {
	ClubID   string    `gorm:"primaryKey;type:uuid"`
	UserID   int64     `gorm:"primaryKey;autoIncrement:false;index"`
	Role     Role      `gorm:"type:varchar(16);not null"`
	JoinedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (Membership) TableName() string { return "club_memberships" }

package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate:
		return true
	default:
		return false
	}
}

type Club struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"not null"`
	Description string
	Visibility  Visibility `gorm:"type:varchar(16);not null"`
	CreatedBy   int64      `gorm:"not null"`

	// NameKey is the case-folded Name; its unique index makes names unique
	// regardless of case.
	NameKey string `gorm:"not null;uniqueIndex:idx_clubs_name_key"`
	// InviteCode is set if and only if Visibility is PRIVATE.
	InviteCode *string `gorm:"type:varchar(8);uniqueIndex:idx_clubs_invite_code"`
	// MaxMembers - nil means the club has no member limit
	MaxMembers *int

	AutoApproveMembers bool `gorm:"not null"`
	Archived           bool `gorm:"not null"`
}

func (Club) TableName() string { return "clubs" }

func (c *Club) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Club) BeforeSave(_ *gorm.DB) error {
	c.NameKey = ClubNameKey(c.Name)
	return nil
}

func (c *Club) IsPrivate() bool {
	return c.Visibility == VisibilityPrivate
}

// HasRoomFor reports whether a club with count members can take one more.
func (c *Club) HasRoomFor(count int64) bool {
	return c.MaxMembers == nil || count < int64(*c.MaxMembers)
}

// ClubNameKey folds name so that names differing only in case collide.
func ClubNameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

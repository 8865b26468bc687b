package entity

import "time"

// Ban excludes a user from a club until it is lifted. A (club, user) pair never
// has a Ban and a Membership at the same time.
type Ban struct {
	ClubID    string `gorm:"primaryKey;type:uuid"`
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	BannedBy  int64  `gorm:"not null"`
	Reason    string
	CreatedAt time.Time
}

func (Ban) TableName() string { return "club_bans" }

package entity

import "time"

// PlatformRole is the coarse, platform-wide role supplied by the identity
// provider. It is independent of any club role.
type PlatformRole string

const (
	PlatformUser      PlatformRole = "user"
	PlatformModerator PlatformRole = "moderator"
	PlatformAdmin     PlatformRole = "admin"
)

func (r PlatformRole) Valid() bool {
	switch r {
	case PlatformUser, PlatformModerator, PlatformAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	ID           int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Username     string
	PlatformRole PlatformRole `gorm:"type:varchar(16);not null;default:'user'"`
}

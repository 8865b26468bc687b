package postgres

import (
	"github.com/aficionados/clubs/internal/domain/entity"
	"gorm.io/gorm"
)

// Migrations is a list of all gorm migrations for the database.
var Migrations = []interface{}{
	&entity.User{},
	&entity.Club{},
	&entity.Membership{},
	&entity.Ban{},
	&entity.JoinRequest{},
}

// indexes gorm tags cannot express.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_join_requests_one_pending
		ON club_join_requests (club_id, user_id) WHERE status = 'PENDING'`,
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Migrations...); err != nil {
		return err
	}
	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			return err
		}
	}
	return nil
}

package postgres

import (
	"errors"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err comes from a unique index or primary
// key. Those indexes are the real race guard for concurrent inserts; callers
// map the violation to the matching domain conflict.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// clubConflict tells a clash on the invite code index apart from a clash on
// the club name.
func clubConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "idx_clubs_invite_code" {
		return errorz.ErrInviteCodeTaken
	}
	return errorz.ErrClubAlreadyExists
}

// notFound maps gorm.ErrRecordNotFound to domainErr and passes anything else through.
func notFound(err, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}

// lockClub loads the club row FOR UPDATE. Every transaction that adds a member
// or records a ban takes this lock first, so capacity and ban checks made
// inside the transaction cannot interleave.
func lockClub(tx *gorm.DB, clubID string) (*entity.Club, error) {
	var club entity.Club
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", clubID).First(&club).Error
	if err != nil {
		return nil, notFound(err, errorz.ErrClubNotFound)
	}
	return &club, nil
}

// joinClub inserts membership under the club lock, re-checking the ban list
// and the member limit.
func joinClub(tx *gorm.DB, membership *entity.Membership) error {
	club, err := lockClub(tx, membership.ClubID)
	if err != nil {
		return err
	}

	var banned int64
	err = tx.Model(&entity.Ban{}).
		Where("club_id = ? AND user_id = ?", membership.ClubID, membership.UserID).
		Count(&banned).Error
	if err != nil {
		return err
	}
	if banned > 0 {
		return errorz.ErrUserBanned
	}

	if club.MaxMembers != nil {
		var count int64
		if err = tx.Model(&entity.Membership{}).Where("club_id = ?", club.ID).Count(&count).Error; err != nil {
			return err
		}
		if !club.HasRoomFor(count) {
			return errorz.ErrCapacityExceeded
		}
	}

	if err = tx.Create(membership).Error; err != nil {
		if isUniqueViolation(err) {
			return errorz.ErrMemberAlreadyExists
		}
		return err
	}
	return nil
}

// dropPendingRequests deletes the pair's PENDING join request. Members and
// banned users have nothing left to wait for.
func dropPendingRequests(tx *gorm.DB, clubID string, userID int64) error {
	return tx.Where("club_id = ? AND user_id = ? AND status = ?", clubID, userID, entity.JoinRequestPending).
		Delete(&entity.JoinRequest{}).Error
}

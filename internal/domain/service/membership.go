package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/aficionados/clubs/pkg/logger/types"
)

type MembershipStorage interface {
	Create(ctx context.Context, membership *entity.Membership) (*entity.Membership, error)
	Get(ctx context.Context, clubID string, userID int64) (*entity.Membership, error)
	Delete(ctx context.Context, clubID string, userID int64) error
	UpdateRole(ctx context.Context, clubID string, userID int64, role entity.Role) (*entity.Membership, error)
	TransferOwnership(ctx context.Context, clubID string, currentOwnerID, newOwnerID int64) error
	Count(ctx context.Context, clubID string) (int64, error)
	List(ctx context.Context, clubID string, filter dto.MemberFilter, page dto.Page) ([]entity.Membership, int64, error)
	OwnershipViolations(ctx context.Context) ([]dto.OwnershipViolation, error)
}

type memberClubStorage interface {
	Get(ctx context.Context, id string) (*entity.Club, error)
}

type memberUserStorage interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type banChecker interface {
	IsBanned(ctx context.Context, clubID string, userID int64) (bool, error)
}

// MembershipService is the ledger of who belongs to which club and with what
// role. The owner role only moves through TransferOwnership.
type MembershipService struct {
	logger *types.Logger

	storage     MembershipStorage
	clubStorage memberClubStorage
	userStorage memberUserStorage
	bans        banChecker
}

func NewMembershipService(
	logger *types.Logger,
	storage MembershipStorage,
	clubStorage memberClubStorage,
	userStorage memberUserStorage,
	bans banChecker,
) *MembershipService {
	return &MembershipService{
		logger: logger,

		storage:     storage,
		clubStorage: clubStorage,
		userStorage: userStorage,
		bans:        bans,
	}
}

// AddMember adds userID to the club. Checks run in order: club exists, user
// exists, not banned, not yet a member, room left. The storage repeats the
// last three under a lock, and its unique key decides concurrent duplicates.
func (s *MembershipService) AddMember(ctx context.Context, clubID string, userID int64, role entity.Role) (*entity.Membership, error) {
	switch role {
	case entity.RoleAdmin, entity.RoleMember:
	case entity.RoleOwner:
		return nil, errorz.ErrOwnerRoleChange
	default:
		return nil, errorz.ErrInvalidRole
	}

	club, err := s.clubStorage.Get(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if club.Archived {
		return nil, errorz.ErrClubArchived
	}

	exists, err := s.userStorage.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, errorz.ErrUserNotFound
	}

	banned, err := s.bans.IsBanned(ctx, clubID, userID)
	if err != nil {
		return nil, fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return nil, errorz.ErrUserBanned
	}

	isMember, err := s.IsMember(ctx, clubID, userID)
	if err != nil {
		return nil, err
	}
	if isMember {
		return nil, errorz.ErrMemberAlreadyExists
	}

	if err = s.EnsureCapacity(ctx, club); err != nil {
		return nil, err
	}

	membership, err := s.storage.Create(ctx, &entity.Membership{
		ClubID: clubID,
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		if errorz.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("add member: %w", err)
	}

	s.logger.Infof("(user: %d) joined club %s as %s", userID, clubID, role)
	return membership, nil
}

// RemoveMember removes a non-owner member. Removing someone who is not a
// member succeeds without doing anything.
func (s *MembershipService) RemoveMember(ctx context.Context, clubID string, userID int64) error {
	membership, err := s.storage.Get(ctx, clubID, userID)
	if errors.Is(err, errorz.ErrMemberNotFound) {
		s.logger.Debugf("(user: %d) remove from club %s: not a member", userID, clubID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get member: %w", err)
	}
	if membership.Role == entity.RoleOwner {
		return errorz.ErrCannotRemoveOwner
	}

	if err = s.storage.Delete(ctx, clubID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.logger.Infof("(user: %d) removed from club %s", userID, clubID)
	return nil
}

// UpdateRole switches a member between admin and member.
func (s *MembershipService) UpdateRole(ctx context.Context, clubID string, userID int64, role entity.Role) (*entity.Membership, error) {
	if !role.Valid() {
		return nil, errorz.ErrInvalidRole
	}

	membership, err := s.storage.Get(ctx, clubID, userID)
	if err != nil {
		return nil, err
	}
	if membership.Role == entity.RoleOwner || role == entity.RoleOwner {
		return nil, errorz.ErrOwnerRoleChange
	}
	if membership.Role == role {
		return membership, nil
	}

	membership, err = s.storage.UpdateRole(ctx, clubID, userID, role)
	if err != nil {
		if errorz.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.logger.Infof("(user: %d) role in club %s changed to %s", userID, clubID, role)
	return membership, nil
}

// TransferOwnership hands the club to another member. The previous owner
// stays in the club as admin.
func (s *MembershipService) TransferOwnership(ctx context.Context, clubID string, currentOwnerID, newOwnerID int64) error {
	if currentOwnerID == newOwnerID {
		return errorz.ErrCannotTransferToSelf
	}

	current, err := s.storage.Get(ctx, clubID, currentOwnerID)
	if err != nil && !errors.Is(err, errorz.ErrMemberNotFound) {
		return fmt.Errorf("get owner: %w", err)
	}
	if current == nil || current.Role != entity.RoleOwner {
		return errorz.ErrNotOwner
	}

	if _, err = s.storage.Get(ctx, clubID, newOwnerID); err != nil {
		return err
	}

	if err = s.storage.TransferOwnership(ctx, clubID, currentOwnerID, newOwnerID); err != nil {
		if errorz.Kind(err) != nil {
			return err
		}
		return fmt.Errorf("transfer ownership: %w", err)
	}
	s.logger.Infof("club %s ownership transferred from %d to %d", clubID, currentOwnerID, newOwnerID)
	return nil
}

// GetRole returns the club role of userID, errorz.ErrMemberNotFound if none.
func (s *MembershipService) GetRole(ctx context.Context, clubID string, userID int64) (entity.Role, error) {
	membership, err := s.storage.Get(ctx, clubID, userID)
	if err != nil {
		return "", err
	}
	return membership.Role, nil
}

func (s *MembershipService) IsMember(ctx context.Context, clubID string, userID int64) (bool, error) {
	_, err := s.storage.Get(ctx, clubID, userID)
	if errors.Is(err, errorz.ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// EnsureCapacity fails with errorz.ErrCapacityExceeded when the club is full.
func (s *MembershipService) EnsureCapacity(ctx context.Context, club *entity.Club) error {
	if club.MaxMembers == nil {
		return nil
	}
	count, err := s.storage.Count(ctx, club.ID)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if !club.HasRoomFor(count) {
		return errorz.ErrCapacityExceeded
	}
	return nil
}

// GetMembers pages through the members of a club, owner first.
func (s *MembershipService) GetMembers(ctx context.Context, clubID string, filter dto.MemberFilter, page dto.Page) (dto.PageResult[entity.Membership], error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return dto.PageResult[entity.Membership]{}, errorz.ErrInvalidRole
	}
	if _, err := s.clubStorage.Get(ctx, clubID); err != nil {
		return dto.PageResult[entity.Membership]{}, err
	}

	members, total, err := s.storage.List(ctx, clubID, filter, page)
	if err != nil {
		return dto.PageResult[entity.Membership]{}, fmt.Errorf("list members: %w", err)
	}
	return dto.NewPageResult(members, total, page), nil
}

// AuditOwnership reports clubs that do not have exactly one owner.
func (s *MembershipService) AuditOwnership(ctx context.Context) ([]dto.OwnershipViolation, error) {
	violations, err := s.storage.OwnershipViolations(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit ownership: %w", err)
	}
	for _, v := range violations {
		s.logger.Warnf("club %s has %d owners", v.ClubID, v.Owners)
	}
	return violations, nil
}

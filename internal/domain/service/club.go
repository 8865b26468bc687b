package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aficionados/clubs/internal/domain/common/errorz"
	"github.com/aficionados/clubs/internal/domain/dto"
	"github.com/aficionados/clubs/internal/domain/entity"
	"github.com/aficionados/clubs/internal/domain/utils/validator"
	"github.com/aficionados/clubs/pkg/generator"
	"github.com/aficionados/clubs/pkg/logger/types"
	qr "github.com/aficionados/clubs/pkg/qrcode"
)

// inviteCodeAttempts bounds how many codes a single save may draw.
const inviteCodeAttempts = 3

type ClubStorage interface {
	CreateWithOwner(ctx context.Context, club *entity.Club) (*entity.Club, error)
	Get(ctx context.Context, id string) (*entity.Club, error)
	GetByInviteCode(ctx context.Context, code string) (*entity.Club, error)
	NameTaken(ctx context.Context, name string, excludeID string) (bool, error)
	Update(ctx context.Context, club *entity.Club) (*entity.Club, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter dto.ClubFilter, page dto.Page) ([]entity.Club, int64, error)
}

type clubMemberStorage interface {
	Get(ctx context.Context, clubID string, userID int64) (*entity.Membership, error)
	Count(ctx context.Context, clubID string) (int64, error)
	CountByClubIDs(ctx context.Context, clubIDs []string) (map[string]int64, error)
}

type clubBanStorage interface {
	IsBanned(ctx context.Context, clubID string, userID int64) (bool, error)
}

type clubRequestStorage interface {
	GetLatest(ctx context.Context, clubID string, userID int64) (*entity.JoinRequest, error)
}

type elevation interface {
	IsElevated(role entity.PlatformRole) bool
}

// ClubService owns the club entity: creation with its owner, lookups, updates,
// archiving and removal.
type ClubService struct {
	logger *types.Logger

	storage        ClubStorage
	memberStorage  clubMemberStorage
	banStorage     clubBanStorage
	requestStorage clubRequestStorage
	elevation      elevation

	// inviteLink is a fmt format with one %s for the code; empty means the QR
	// code carries the bare code.
	inviteLink    string
	newInviteCode func() (string, error)
}

func NewClubService(
	logger *types.Logger,
	storage ClubStorage,
	memberStorage clubMemberStorage,
	banStorage clubBanStorage,
	requestStorage clubRequestStorage,
	elevation elevation,
	inviteLink string,
) *ClubService {
	return &ClubService{
		logger: logger,

		storage:        storage,
		memberStorage:  memberStorage,
		banStorage:     banStorage,
		requestStorage: requestStorage,
		elevation:      elevation,

		inviteLink:    inviteLink,
		newInviteCode: generator.InviteCode,
	}
}

// Create creates a club and makes ownerID its owner.
func (s *ClubService) Create(ctx context.Context, ownerID int64, params dto.CreateClub) (*dto.Club, error) {
	if params.Visibility == "" {
		params.Visibility = entity.VisibilityPublic
	}
	if err := validateClub(params.Name, params.Description, params.Visibility, params.MaxMembers); err != nil {
		return nil, err
	}

	taken, err := s.storage.NameTaken(ctx, params.Name, "")
	if err != nil {
		return nil, fmt.Errorf("check club name: %w", err)
	}
	if taken {
		return nil, errorz.ErrClubAlreadyExists
	}

	club := &entity.Club{
		Name:               strings.TrimSpace(params.Name),
		Description:        params.Description,
		Visibility:         params.Visibility,
		MaxMembers:         params.MaxMembers,
		AutoApproveMembers: params.AutoApproveMembers,
		CreatedBy:          ownerID,
	}
	if club.IsPrivate() {
		if err = s.assignInviteCode(club); err != nil {
			return nil, err
		}
	}

	club, err = s.saveWithInviteCode(club, func(club *entity.Club) (*entity.Club, error) {
		return s.storage.CreateWithOwner(ctx, club)
	})
	if err != nil {
		if errors.Is(err, errorz.ErrClubAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create club: %w", err)
	}

	s.logger.Infof("(user: %d) created club %s (%s, %s)", ownerID, club.ID, club.Name, club.Visibility)
	return &dto.Club{Club: *club, MemberCount: 1}, nil
}

func (s *ClubService) Get(ctx context.Context, id string) (*entity.Club, error) {
	return s.storage.Get(ctx, id)
}

// FindOne returns the club with its member count and the caller's standing in
// it. The invite code is only shown to the owner, admins and elevated platform
// roles.
func (s *ClubService) FindOne(ctx context.Context, id string, caller dto.Caller) (*dto.ClubDetails, error) {
	club, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := s.memberStorage.Count(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	details := &dto.ClubDetails{Club: dto.Club{Club: *club, MemberCount: count}}
	if caller.UserID != 0 {
		details.CallerStatus, details.CallerRole, err = s.callerStatus(ctx, id, caller.UserID)
		if err != nil {
			return nil, err
		}
	}

	if !s.seesInviteCode(caller, details.CallerRole) {
		details.InviteCode = nil
	}
	return details, nil
}

func (s *ClubService) seesInviteCode(caller dto.Caller, role *entity.Role) bool {
	if s.elevation != nil && s.elevation.IsElevated(caller.PlatformRole) {
		return true
	}
	return role != nil && *role != entity.RoleMember
}

type statusCheck struct {
	status dto.CallerStatus
	holds  func(ctx context.Context) (bool, error)
}

// callerStatus walks the checks in priority order and returns the first that
// holds, so a banned user's old membership or request never shows through.
func (s *ClubService) callerStatus(ctx context.Context, clubID string, userID int64) (dto.CallerStatus, *entity.Role, error) {
	var (
		membership *entity.Membership
		request    *entity.JoinRequest
		loaded     bool
	)
	latestRequest := func(ctx context.Context) (*entity.JoinRequest, error) {
		if loaded {
			return request, nil
		}
		r, err := s.requestStorage.GetLatest(ctx, clubID, userID)
		if err != nil && !errors.Is(err, errorz.ErrJoinRequestNotFound) {
			return nil, err
		}
		request, loaded = r, true
		return request, nil
	}
	requestIn := func(status entity.JoinRequestStatus) func(ctx context.Context) (bool, error) {
		return func(ctx context.Context) (bool, error) {
			r, err := latestRequest(ctx)
			return r != nil && r.Status == status, err
		}
	}

	checks := []statusCheck{
		{dto.CallerStatusBanned, func(ctx context.Context) (bool, error) {
			return s.banStorage.IsBanned(ctx, clubID, userID)
		}},
		{dto.CallerStatusMember, func(ctx context.Context) (bool, error) {
			m, err := s.memberStorage.Get(ctx, clubID, userID)
			if errors.Is(err, errorz.ErrMemberNotFound) {
				return false, nil
			}
			membership = m
			return err == nil, err
		}},
		{dto.CallerStatusPending, requestIn(entity.JoinRequestPending)},
		{dto.CallerStatusRejected, requestIn(entity.JoinRequestRejected)},
	}

	for _, check := range checks {
		ok, err := check.holds(ctx)
		if err != nil {
			return dto.CallerStatusNone, nil, fmt.Errorf("caller status: %w", err)
		}
		if !ok {
			continue
		}
		if check.status == dto.CallerStatusMember {
			role := membership.Role
			return check.status, &role, nil
		}
		return check.status, nil, nil
	}
	return dto.CallerStatusNone, nil, nil
}

// FindAll lists the club directory with member counts.
func (s *ClubService) FindAll(ctx context.Context, filter dto.ClubFilter, page dto.Page) (dto.PageResult[dto.Club], error) {
	if filter.Visibility != nil && !filter.Visibility.Valid() {
		return dto.PageResult[dto.Club]{}, errorz.ErrInvalidVisibility
	}

	clubs, total, err := s.storage.List(ctx, filter, page)
	if err != nil {
		return dto.PageResult[dto.Club]{}, fmt.Errorf("list clubs: %w", err)
	}

	ids := make([]string, len(clubs))
	for i, club := range clubs {
		ids[i] = club.ID
	}
	counts, err := s.memberStorage.CountByClubIDs(ctx, ids)
	if err != nil {
		return dto.PageResult[dto.Club]{}, fmt.Errorf("count members: %w", err)
	}

	items := make([]dto.Club, len(clubs))
	for i, club := range clubs {
		items[i] = dto.Club{Club: club, MemberCount: counts[club.ID]}
	}
	return dto.NewPageResult(items, total, page), nil
}

// Update applies params to the club. Switching to PRIVATE issues an invite
// code, switching to PUBLIC drops it. The member limit cannot go below the
// current member count.
func (s *ClubService) Update(ctx context.Context, id string, params dto.UpdateClub) (*entity.Club, error) {
	club, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		taken, err := s.storage.NameTaken(ctx, *params.Name, club.ID)
		if err != nil {
			return nil, fmt.Errorf("check club name: %w", err)
		}
		if taken {
			return nil, errorz.ErrClubAlreadyExists
		}
		club.Name = strings.TrimSpace(*params.Name)
	}
	if params.Description != nil {
		club.Description = *params.Description
	}
	if params.AutoApproveMembers != nil {
		club.AutoApproveMembers = *params.AutoApproveMembers
	}
	if params.ClearMaxMembers {
		club.MaxMembers = nil
	} else if params.MaxMembers != nil {
		club.MaxMembers = params.MaxMembers
	}
	if params.Visibility != nil {
		club.Visibility = *params.Visibility
	}

	if err = validateClub(club.Name, club.Description, club.Visibility, club.MaxMembers); err != nil {
		return nil, err
	}

	if club.MaxMembers != nil {
		count, err := s.memberStorage.Count(ctx, club.ID)
		if err != nil {
			return nil, fmt.Errorf("count members: %w", err)
		}
		if count > int64(*club.MaxMembers) {
			return nil, errorz.ErrInvalidMaxMembers
		}
	}

	switch club.Visibility {
	case entity.VisibilityPrivate:
		if club.InviteCode == nil {
			if err = s.assignInviteCode(club); err != nil {
				return nil, err
			}
		}
	case entity.VisibilityPublic:
		club.InviteCode = nil
	}

	club, err = s.saveWithInviteCode(club, func(club *entity.Club) (*entity.Club, error) {
		return s.storage.Update(ctx, club)
	})
	if err != nil {
		if errors.Is(err, errorz.ErrClubAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("update club: %w", err)
	}
	s.logger.Infof("club %s updated", club.ID)
	return club, nil
}

// SetArchived archives or restores a club. Archived clubs accept no new members.
func (s *ClubService) SetArchived(ctx context.Context, id string, archived bool) (*entity.Club, error) {
	club, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	club.Archived = archived

	club, err = s.storage.Update(ctx, club)
	if err != nil {
		return nil, fmt.Errorf("archive club: %w", err)
	}
	s.logger.Infof("club %s archived=%t", club.ID, archived)
	return club, nil
}

// Remove deletes the club with all its memberships, bans and join requests.
func (s *ClubService) Remove(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		if errors.Is(err, errorz.ErrClubNotFound) {
			return err
		}
		return fmt.Errorf("remove club: %w", err)
	}
	s.logger.Infof("club %s removed", id)
	return nil
}

// RegenerateInviteCode replaces the invite code of a private club, making the
// old one unusable.
func (s *ClubService) RegenerateInviteCode(ctx context.Context, id string) (*entity.Club, error) {
	club, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !club.IsPrivate() {
		return nil, errorz.ErrNotPrivate
	}
	if err = s.assignInviteCode(club); err != nil {
		return nil, err
	}

	club, err = s.saveWithInviteCode(club, func(club *entity.Club) (*entity.Club, error) {
		return s.storage.Update(ctx, club)
	})
	if err != nil {
		return nil, fmt.Errorf("regenerate invite code: %w", err)
	}
	s.logger.Infof("club %s invite code regenerated", club.ID)
	return club, nil
}

// InviteQR renders the invite code of a private club as a PNG QR code.
func (s *ClubService) InviteQR(ctx context.Context, id string) ([]byte, error) {
	club, err := s.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !club.IsPrivate() || club.InviteCode == nil {
		return nil, errorz.ErrNotPrivate
	}

	cfg := qr.Invite
	cfg.Content = *club.InviteCode
	if s.inviteLink != "" {
		cfg.Content = fmt.Sprintf(s.inviteLink, *club.InviteCode)
	}
	cfg.Caption = *club.InviteCode
	return cfg.Generate()
}

// saveWithInviteCode runs save and draws a fresh invite code each time the
// current one turns out to belong to another club.
func (s *ClubService) saveWithInviteCode(club *entity.Club, save func(*entity.Club) (*entity.Club, error)) (*entity.Club, error) {
	for attempt := 1; ; attempt++ {
		saved, err := save(club)
		if !errors.Is(err, errorz.ErrInviteCodeTaken) || attempt == inviteCodeAttempts {
			return saved, err
		}
		s.logger.Warnf("invite code collision for club %q, drawing another (attempt %d)", club.Name, attempt)
		if err = s.assignInviteCode(club); err != nil {
			return nil, err
		}
	}
}

func (s *ClubService) assignInviteCode(club *entity.Club) error {
	code, err := s.newInviteCode()
	if err != nil {
		return fmt.Errorf("generate invite code: %w", err)
	}
	club.InviteCode = &code
	return nil
}

func validateClub(name, description string, visibility entity.Visibility, maxMembers *int) error {
	switch {
	case !validator.ClubName(name):
		return errorz.ErrInvalidName
	case !validator.ClubDescription(description):
		return errorz.ErrInvalidDescription
	case !visibility.Valid():
		return errorz.ErrInvalidVisibility
	case !validator.MaxMembers(maxMembers):
		return errorz.ErrInvalidMaxMembers
	}
	return nil
}

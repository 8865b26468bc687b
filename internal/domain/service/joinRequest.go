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
	"github.com/aficionados/clubs/pkg/logger/types"
)

type JoinRequestStorage interface {
	Create(ctx context.Context, request *entity.JoinRequest) (*entity.JoinRequest, error)
	Get(ctx context.Context, id string) (*entity.JoinRequest, error)
	GetLatest(ctx context.Context, clubID string, userID int64) (*entity.JoinRequest, error)
	DeleteProcessed(ctx context.Context, clubID string, userID int64) error
	DeletePending(ctx context.Context, id string) error
	Approve(ctx context.Context, id string, reviewerID int64) (*entity.JoinRequest, *entity.Membership, error)
	Reject(ctx context.Context, id string, reviewerID int64) (*entity.JoinRequest, error)
	List(ctx context.Context, filter dto.JoinRequestFilter, page dto.Page) ([]entity.JoinRequest, int64, error)
}

// InviteAttemptStorage counts failed invite code redemptions per user over a
// sliding window.
type InviteAttemptStorage interface {
	Get(ctx context.Context, userID int64) (int64, error)
	Increment(ctx context.Context, userID int64) (int64, error)
	Reset(ctx context.Context, userID int64) error
}

type requestClubStorage interface {
	Get(ctx context.Context, id string) (*entity.Club, error)
	GetByInviteCode(ctx context.Context, code string) (*entity.Club, error)
}

type memberLedger interface {
	AddMember(ctx context.Context, clubID string, userID int64, role entity.Role) (*entity.Membership, error)
	IsMember(ctx context.Context, clubID string, userID int64) (bool, error)
	EnsureCapacity(ctx context.Context, club *entity.Club) error
}

// JoinRequestService decides how users get into clubs: auto-approval, manual
// review of join requests, or invite code redemption.
type JoinRequestService struct {
	logger *types.Logger

	storage     JoinRequestStorage
	clubStorage requestClubStorage
	members     memberLedger
	bans        banChecker

	attempts    InviteAttemptStorage
	maxAttempts int64
}

func NewJoinRequestService(
	logger *types.Logger,
	storage JoinRequestStorage,
	clubStorage requestClubStorage,
	members memberLedger,
	bans banChecker,
	attempts InviteAttemptStorage,
	maxAttempts int64,
) *JoinRequestService {
	return &JoinRequestService{
		logger: logger,

		storage:     storage,
		clubStorage: clubStorage,
		members:     members,
		bans:        bans,

		attempts:    attempts,
		maxAttempts: maxAttempts,
	}
}

// CreateRequest applies userID to a club. Auto-approving clubs add the user
// right away and no request is stored; otherwise a PENDING request is created.
// A previous approved or rejected request is cleared so the user can reapply.
func (s *JoinRequestService) CreateRequest(ctx context.Context, clubID string, userID int64, message string) (*dto.JoinResult, error) {
	if !validator.JoinRequestMessage(message) {
		return nil, errorz.ErrInvalidMessage
	}

	club, err := s.clubStorage.Get(ctx, clubID)
	if err != nil {
		return nil, err
	}
	if club.Archived {
		return nil, errorz.ErrClubArchived
	}
	if err = s.ensureNotBannedOrMember(ctx, clubID, userID); err != nil {
		return nil, err
	}

	previous, err := s.storage.GetLatest(ctx, clubID, userID)
	if err != nil && !errors.Is(err, errorz.ErrJoinRequestNotFound) {
		return nil, fmt.Errorf("get previous request: %w", err)
	}
	if previous != nil {
		switch previous.Status {
		case entity.JoinRequestPending:
			return nil, errorz.ErrAlreadyApplied
		case entity.JoinRequestApproved, entity.JoinRequestRejected:
			if err = s.storage.DeleteProcessed(ctx, clubID, userID); err != nil {
				return nil, fmt.Errorf("clear previous request: %w", err)
			}
		default:
			return nil, errorz.ErrInvalidStatus
		}
	}

	if err = s.members.EnsureCapacity(ctx, club); err != nil {
		return nil, err
	}

	if club.AutoApproveMembers {
		membership, err := s.members.AddMember(ctx, clubID, userID, entity.RoleMember)
		if err != nil {
			return nil, err
		}
		s.logger.Infof("(user: %d) auto-approved into club %s", userID, clubID)
		return &dto.JoinResult{Membership: membership, AutoApproved: true}, nil
	}

	request, err := s.storage.Create(ctx, &entity.JoinRequest{
		ClubID:  clubID,
		UserID:  userID,
		Status:  entity.JoinRequestPending,
		Message: message,
	})
	if err != nil {
		if errors.Is(err, errorz.ErrAlreadyApplied) {
			return nil, err
		}
		return nil, fmt.Errorf("create join request: %w", err)
	}

	s.logger.Infof("(user: %d) applied to club %s (request %s)", userID, clubID, request.ID)
	return &dto.JoinResult{Request: request}, nil
}

// JoinByCode redeems an invite code. Redemption skips review but not the ban,
// membership and capacity checks. Repeated wrong codes lock the user out for
// the attempts window.
func (s *JoinRequestService) JoinByCode(ctx context.Context, code string, userID int64) (*dto.InviteJoin, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	if s.attempts != nil && s.maxAttempts > 0 {
		failed, err := s.attempts.Get(ctx, userID)
		if err != nil {
			s.logger.Errorf("(user: %d) failed to read invite attempts: %v", userID, err)
		} else if failed >= s.maxAttempts {
			return nil, errorz.ErrTooManyAttempts
		}
	}

	club, err := s.clubStorage.GetByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, errorz.ErrInvalidCode) {
			s.recordFailedAttempt(ctx, userID)
			return nil, err
		}
		return nil, fmt.Errorf("find club by code: %w", err)
	}

	membership, err := s.members.AddMember(ctx, club.ID, userID, entity.RoleMember)
	if err != nil {
		return nil, err
	}

	if s.attempts != nil {
		if err = s.attempts.Reset(ctx, userID); err != nil {
			s.logger.Errorf("(user: %d) failed to reset invite attempts: %v", userID, err)
		}
	}
	s.logger.Infof("(user: %d) joined club %s by invite code", userID, club.ID)
	return &dto.InviteJoin{Membership: membership, Club: club}, nil
}

func (s *JoinRequestService) recordFailedAttempt(ctx context.Context, userID int64) {
	if s.attempts == nil {
		return
	}
	failed, err := s.attempts.Increment(ctx, userID)
	if err != nil {
		s.logger.Errorf("(user: %d) failed to record invite attempt: %v", userID, err)
		return
	}
	s.logger.Debugf("(user: %d) invalid invite code, attempt %d", userID, failed)
}

// UpdateRequest approves or rejects a pending request. Approval inserts the
// membership and flips the status in one transaction.
func (s *JoinRequestService) UpdateRequest(ctx context.Context, requestID string, reviewerID int64, decision entity.JoinRequestStatus) (*entity.JoinRequest, error) {
	switch decision {
	case entity.JoinRequestApproved, entity.JoinRequestRejected:
	default:
		return nil, errorz.ErrInvalidDecision
	}

	request, err := s.storage.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.IsPending() {
		return nil, errorz.ErrRequestProcessed
	}

	if decision == entity.JoinRequestRejected {
		request, err = s.storage.Reject(ctx, requestID, reviewerID)
		if err != nil {
			if errorz.Kind(err) != nil {
				return nil, err
			}
			return nil, fmt.Errorf("reject join request: %w", err)
		}
		s.logger.Infof("(user: %d) request %s to club %s rejected by %d", request.UserID, request.ID, request.ClubID, reviewerID)
		return request, nil
	}

	club, err := s.clubStorage.Get(ctx, request.ClubID)
	if err != nil {
		return nil, err
	}
	if club.Archived {
		return nil, errorz.ErrClubArchived
	}
	if err = s.ensureNotBannedOrMember(ctx, request.ClubID, request.UserID); err != nil {
		return nil, err
	}
	if err = s.members.EnsureCapacity(ctx, club); err != nil {
		return nil, err
	}

	request, _, err = s.storage.Approve(ctx, requestID, reviewerID)
	if err != nil {
		if errorz.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("approve join request: %w", err)
	}
	s.logger.Infof("(user: %d) request %s to club %s approved by %d", request.UserID, request.ID, request.ClubID, reviewerID)
	return request, nil
}

// CancelRequest withdraws a pending request. Only the requester may do it.
func (s *JoinRequestService) CancelRequest(ctx context.Context, requestID string, userID int64) error {
	request, err := s.storage.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if request.UserID != userID {
		return errorz.ErrNotRequester
	}
	if !request.IsPending() {
		return errorz.ErrRequestProcessed
	}

	if err = s.storage.DeletePending(ctx, requestID); err != nil {
		if errorz.Kind(err) != nil {
			return err
		}
		return fmt.Errorf("cancel join request: %w", err)
	}
	s.logger.Infof("(user: %d) cancelled request %s", userID, requestID)
	return nil
}

// GetRequests pages through requests of a club or of a user, pending first.
func (s *JoinRequestService) GetRequests(ctx context.Context, filter dto.JoinRequestFilter, page dto.Page) (dto.PageResult[entity.JoinRequest], error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return dto.PageResult[entity.JoinRequest]{}, errorz.ErrInvalidStatus
	}

	requests, total, err := s.storage.List(ctx, filter, page)
	if err != nil {
		return dto.PageResult[entity.JoinRequest]{}, fmt.Errorf("list join requests: %w", err)
	}
	return dto.NewPageResult(requests, total, page), nil
}

func (s *JoinRequestService) ensureNotBannedOrMember(ctx context.Context, clubID string, userID int64) error {
	banned, err := s.bans.IsBanned(ctx, clubID, userID)
	if err != nil {
		return fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return errorz.ErrUserBanned
	}

	isMember, err := s.members.IsMember(ctx, clubID, userID)
	if err != nil {
		return err
	}
	if isMember {
		return errorz.ErrMemberAlreadyExists
	}
	return nil
}

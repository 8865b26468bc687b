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

// Operation names a club operation that needs a club role.
type Operation string

const (
	OpViewMembers       Operation = "members:view"
	OpAddMember         Operation = "members:add"
	OpRemoveMember      Operation = "members:remove"
	OpUpdateRole        Operation = "members:update-role"
	OpTransferOwnership Operation = "club:transfer-ownership"
	OpUpdateClub        Operation = "club:update"
	OpArchiveClub       Operation = "club:archive"
	OpRemoveClub        Operation = "club:remove"
	OpManageInvite      Operation = "club:invite"
	OpBanMember         Operation = "bans:create"
	OpUnbanMember       Operation = "bans:delete"
	OpViewBans          Operation = "bans:view"
	OpReviewRequest     Operation = "requests:review"
	OpViewRequests      Operation = "requests:view"
)

// RequiredRoles returns the club roles allowed to perform op. An empty slice
// means any member may.
func (op Operation) RequiredRoles() ([]entity.Role, error) {
	switch op {
	case OpViewMembers:
		return nil, nil
	case OpAddMember, OpRemoveMember, OpManageInvite,
		OpBanMember, OpUnbanMember, OpViewBans,
		OpReviewRequest, OpViewRequests, OpUpdateClub:
		return []entity.Role{entity.RoleOwner, entity.RoleAdmin}, nil
	case OpUpdateRole, OpTransferOwnership, OpArchiveClub, OpRemoveClub:
		return []entity.Role{entity.RoleOwner}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

type roleReader interface {
	GetRole(ctx context.Context, clubID string, userID int64) (entity.Role, error)
}

// AuthorizationGate decides whether a caller may run a club operation. It is
// consulted before any mutating call and has no side effects.
type AuthorizationGate struct {
	logger *types.Logger

	roles    roleReader
	elevated map[entity.PlatformRole]struct{}
}

// NewAuthorizationGate builds a gate in which the elevated platform roles may
// manage every club regardless of membership.
func NewAuthorizationGate(logger *types.Logger, roles roleReader, elevated ...entity.PlatformRole) *AuthorizationGate {
	set := make(map[entity.PlatformRole]struct{}, len(elevated))
	for _, role := range elevated {
		set[role] = struct{}{}
	}
	return &AuthorizationGate{
		logger:   logger,
		roles:    roles,
		elevated: set,
	}
}

// Allow is the pure decision. Elevated platform roles always pass. Otherwise
// the caller needs a club role, and one of required when required is not empty.
func (g *AuthorizationGate) Allow(platformRole entity.PlatformRole, clubRole *entity.Role, required ...entity.Role) bool {
	if g.IsElevated(platformRole) {
		return true
	}
	if clubRole == nil || !clubRole.Valid() {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, role := range required {
		if role == *clubRole {
			return true
		}
	}
	return false
}

// Authorize looks up the caller's club role and applies the policy of op.
func (g *AuthorizationGate) Authorize(ctx context.Context, caller dto.Caller, clubID string, op Operation) error {
	required, err := op.RequiredRoles()
	if err != nil {
		return err
	}
	if g.IsElevated(caller.PlatformRole) {
		return nil
	}

	var clubRole *entity.Role
	role, err := g.roles.GetRole(ctx, clubID, caller.UserID)
	switch {
	case err == nil:
		clubRole = &role
	case errors.Is(err, errorz.ErrMemberNotFound):
	default:
		return fmt.Errorf("get club role: %w", err)
	}

	if !g.Allow(caller.PlatformRole, clubRole, required...) {
		g.logger.Debugf("(user: %d) denied %s in club %s", caller.UserID, op, clubID)
		return errorz.ErrPermissionDenied
	}
	return nil
}

// IsElevated reports whether role may manage every club.
func (g *AuthorizationGate) IsElevated(role entity.PlatformRole) bool {
	if !role.Valid() {
		return false
	}
	_, ok := g.elevated[role]
	return ok
}

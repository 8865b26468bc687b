package dto

import "github.com/aficionados/clubs/internal/domain/entity"

// JoinRequestFilter selects requests by club or by requester; at least one of
// ClubID and UserID should be set.
type JoinRequestFilter struct {
	ClubID string
	UserID *int64
	Status *entity.JoinRequestStatus
}

// JoinResult is what createJoinRequest hands back: either a pending request or,
// for auto-approving clubs, the membership that was created instead.
type JoinResult struct {
	Request      *entity.JoinRequest
	Membership   *entity.Membership
	AutoApproved bool
}

// InviteJoin is the result of redeeming an invite code.
type InviteJoin struct {
	Membership *entity.Membership
	Club       *entity.Club
}

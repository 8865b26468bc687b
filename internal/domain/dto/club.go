package dto

import "github.com/aficionados/clubs/internal/domain/entity"

type CreateClub struct {
	Name               string
	Description        string
	Visibility         entity.Visibility
	MaxMembers         *int
	AutoApproveMembers bool
}

// UpdateClub carries optional changes; nil fields are left untouched.
type UpdateClub struct {
	Name               *string
	Description        *string
	Visibility         *entity.Visibility
	MaxMembers         *int
	ClearMaxMembers    bool
	AutoApproveMembers *bool
}

type ClubFilter struct {
	Visibility      *entity.Visibility
	Search          string
	IncludeArchived bool
}

// CallerStatus is the caller's standing in a club, derived in priority order
// Banned > Member > Pending > Rejected > None.
type CallerStatus string

const (
	CallerStatusNone     CallerStatus = ""
	CallerStatusBanned   CallerStatus = "BANNED"
	CallerStatusMember   CallerStatus = "MEMBER"
	CallerStatusPending  CallerStatus = "PENDING"
	CallerStatusRejected CallerStatus = "REJECTED"
)

type Club struct {
	entity.Club
	MemberCount int64
}

type ClubDetails struct {
	Club
	CallerStatus CallerStatus
	// CallerRole is set when CallerStatus is MEMBER.
	CallerRole *entity.Role
}

package dto

import "github.com/aficionados/clubs/internal/domain/entity"

type MemberFilter struct {
	Role *entity.Role
}

// OwnershipViolation describes a club whose owner count is not exactly one.
type OwnershipViolation struct {
	ClubID string
	Owners int64
}

package dto

import "github.com/aficionados/clubs/internal/domain/entity"

// Caller is the authenticated identity the transport layer hands over.
type Caller struct {
	UserID       int64
	PlatformRole entity.PlatformRole
}

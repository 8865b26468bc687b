package errorz

import (
	"errors"
	"fmt"
)

// Kinds. Every domain error below wraps exactly one of them, so transport code
// can map errors with errors.Is(err, errorz.ErrNotFound) and friends.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

// ===== NotFound =====
var (
	ErrClubNotFound        = notFound("club not found")
	ErrUserNotFound        = notFound("user not found")
	ErrMemberNotFound      = notFound("member not found")
	ErrJoinRequestNotFound = notFound("join request not found")
	ErrInvalidCode         = notFound("invalid invite code")
)

// ===== Conflict =====
var (
	ErrClubAlreadyExists   = conflict("club with this name already exists")
	ErrMemberAlreadyExists = conflict("user is already a member of this club")
	ErrAlreadyApplied      = conflict("join request is already pending")
	ErrInviteCodeTaken     = conflict("invite code is already in use")
)

// ===== Forbidden =====
var (
	ErrUserBanned           = forbidden("user is banned from this club")
	ErrCapacityExceeded     = forbidden("club has reached its member limit")
	ErrCannotRemoveOwner    = forbidden("club owner cannot be removed")
	ErrCannotTransferToSelf = forbidden("cannot transfer ownership to yourself")
	ErrNotOwner             = forbidden("only the club owner can do this")
	ErrOwnerRoleChange      = forbidden("owner role can only change through ownership transfer")
	ErrCannotBanPrivileged  = forbidden("only plain members can be banned")
	ErrAlreadyBanned        = forbidden("user is already banned")
	ErrNotBanned            = forbidden("user is not banned")
	ErrRequestProcessed     = forbidden("join request has already been processed")
	ErrNotRequester         = forbidden("only the requester can cancel a join request")
	ErrClubArchived         = forbidden("club is archived")
	ErrNotPrivate           = forbidden("club is not private")
	ErrTooManyAttempts      = forbidden("too many invalid invite codes, try again later")
	ErrPermissionDenied     = forbidden("permission denied")
)

// ===== InvalidInput =====
var (
	ErrInvalidRole        = invalid("invalid club role")
	ErrInvalidStatus      = invalid("invalid join request status")
	ErrInvalidVisibility  = invalid("invalid club visibility")
	ErrInvalidName        = invalid("club name must be 3 to 50 characters")
	ErrInvalidDescription = invalid("club description is too long")
	ErrInvalidMessage     = invalid("join request message is too long")
	ErrInvalidReason      = invalid("ban reason is too long")
	ErrInvalidMaxMembers  = invalid("member limit must be positive and not below the member count")
	ErrInvalidDecision    = invalid("decision must be APPROVED or REJECTED")
)

// Kind returns the kind sentinel err belongs to, or nil for errors outside the
// taxonomy (storage outages and the like).
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrForbidden, ErrInvalidInput} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func notFound(msg string) error  { return fmt.Errorf("%s: %w", msg, ErrNotFound) }
func conflict(msg string) error  { return fmt.Errorf("%s: %w", msg, ErrConflict) }
func forbidden(msg string) error { return fmt.Errorf("%s: %w", msg, ErrForbidden) }
func invalid(msg string) error   { return fmt.Errorf("%s: %w", msg, ErrInvalidInput) }

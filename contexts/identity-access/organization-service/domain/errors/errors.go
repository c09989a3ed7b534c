package errors

import "errors"

// Sentinel outcomes of the organization/membership core. All are local and
// recoverable; the HTTP layer maps them to statuses in one place. NotFound
// is deliberately reused for resources the caller must not learn exist.
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMembershipNotFound   = errors.New("user is not a member of this organization")
	ErrRoleNotFound         = errors.New("role_name: role does not exist")
	ErrMemberEmailUnknown   = errors.New("user_email: user with this email does not exist")

	ErrSlugTaken        = errors.New("organization with this slug already exists")
	ErrMembershipExists = errors.New("user is already a member of this organization")

	ErrForbidden = errors.New("insufficient role for this action")
	ErrLastOwner = errors.New("cannot remove the last owner of the organization")

	ErrInvalidOrganizationInput = errors.New("invalid organization input")
	ErrInvalidMembershipInput   = errors.New("invalid membership input")
)

package entities

import "time"

// Membership binds exactly one user to one organization with one role.
// It is the only authorization edge: no active membership, no rights.
// Deactivation revokes access immediately but the row is never deleted.
type Membership struct {
	MembershipID   string    `json:"membership_id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           Role      `json:"role"`
	IsActive       bool      `json:"is_active"`
	JoinedAt       time.Time `json:"joined_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MemberView is the projection returned by member listings: the membership
// joined with the member's public identity fields.
type MemberView struct {
	Membership
	UserEmail    string `json:"user_email"`
	UserUsername string `json:"user_username"`
	UserFullName string `json:"user_full_name"`
}

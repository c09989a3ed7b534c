package entities

import "time"

// Organization is a tenant. Access to anything inside it flows through an
// active Membership; the organization row itself carries no member state
// beyond the creator reference.
type Organization struct {
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Description    string    `json:"description"`
	CreatedBy      string    `json:"created_by"`
	IsActive       bool      `json:"is_active"`
	MembersCount   int       `json:"members_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Principal is the authenticated caller identity resolved by the platform
// layer before any service operation runs. The core never sees credentials.
type Principal struct {
	UserID      string
	IsSuperuser bool
}

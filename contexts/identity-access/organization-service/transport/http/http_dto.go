package httptransport

import (
	"encoding/json"
	"time"
)

// CreateOrganizationRequest registers a new organization. Slug is optional;
// when empty it is derived from the name.
type CreateOrganizationRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
}

// UpdateOrganizationRequest carries a partial update. Absent fields stay
// unchanged.
type UpdateOrganizationRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type OrganizationResponse struct {
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

type ListOrganizationsResponse struct {
	Organizations []OrganizationResponse `json:"organizations"`
}

type RoleResponse struct {
	RoleID      string          `json:"role_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Rank        int             `json:"rank"`
	Permissions json.RawMessage `json:"permissions"`
}

type ListRolesResponse struct {
	Roles []RoleResponse `json:"roles"`
}

// AddMemberRequest binds an existing user to the organization by email.
type AddMemberRequest struct {
	UserEmail string `json:"user_email"`
	RoleName  string `json:"role_name"`
}

type UpdateMemberRoleRequest struct {
	RoleName string `json:"role_name"`
}

type MembershipResponse struct {
	MembershipID   string    `json:"membership_id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	RoleName       string    `json:"role_name"`
	RoleRank       int       `json:"role_rank"`
	IsActive       bool      `json:"is_active"`
	JoinedAt       time.Time `json:"joined_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MemberResponse joins a membership with the member's identity projection.
type MemberResponse struct {
	MembershipResponse
	UserEmail    string `json:"user_email"`
	UserUsername string `json:"user_username"`
	UserFullName string `json:"user_full_name"`
}

type ListMembersResponse struct {
	OrganizationID string           `json:"organization_id"`
	Members        []MemberResponse `json:"members"`
}

type ListMembershipsResponse struct {
	Memberships []MembershipResponse `json:"memberships"`
}

// ErrorResponse is the uniform error envelope for organization endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

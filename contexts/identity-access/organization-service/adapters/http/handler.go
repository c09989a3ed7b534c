package httpadapter

import (
	"context"
	"log/slog"

	"opencast/contexts/identity-access/organization-service/application"
	"opencast/contexts/identity-access/organization-service/domain/entities"
	"opencast/contexts/identity-access/organization-service/ports"
	httptransport "opencast/contexts/identity-access/organization-service/transport/http"
)

// Handler maps HTTP DTOs to application service calls.
type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// ListRolesHandler returns the seeded role catalog.
func (h Handler) ListRolesHandler(ctx context.Context) (httptransport.ListRolesResponse, error) {
	roles, err := h.Service.ListRoles(ctx)
	if err != nil {
		return httptransport.ListRolesResponse{}, err
	}
	items := make([]httptransport.RoleResponse, 0, len(roles))
	for _, role := range roles {
		items = append(items, roleResponse(role))
	}
	return httptransport.ListRolesResponse{Roles: items}, nil
}

// CreateOrganizationHandler registers an organization with the caller as owner.
func (h Handler) CreateOrganizationHandler(
	ctx context.Context,
	principal entities.Principal,
	request httptransport.CreateOrganizationRequest,
) (httptransport.OrganizationResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("http create organization received",
		"event", "org_http_create_received",
		"module", "identity-access/organization-service",
		"layer", "transport",
		"actor_id", principal.UserID,
		"name", request.Name,
	)

	organization, _, err := h.Service.CreateOrganization(ctx, principal, request.Name, request.Slug, request.Description)
	if err != nil {
		logger.Error("http create organization failed",
			"event", "org_http_create_failed",
			"module", "identity-access/organization-service",
			"layer", "transport",
			"actor_id", principal.UserID,
			"error", err.Error(),
		)
		return httptransport.OrganizationResponse{}, err
	}
	return organizationResponse(organization), nil
}

func (h Handler) GetOrganizationHandler(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
) (httptransport.OrganizationResponse, error) {
	organization, err := h.Service.GetOrganization(ctx, principal, organizationID)
	if err != nil {
		return httptransport.OrganizationResponse{}, err
	}
	return organizationResponse(organization), nil
}

func (h Handler) ListOrganizationsHandler(
	ctx context.Context,
	principal entities.Principal,
) (httptransport.ListOrganizationsResponse, error) {
	organizations, err := h.Service.ListOrganizations(ctx, principal)
	if err != nil {
		return httptransport.ListOrganizationsResponse{}, err
	}
	return listOrganizationsResponse(organizations), nil
}

// ListAllOrganizationsHandler is the superuser-only platform-wide listing.
func (h Handler) ListAllOrganizationsHandler(
	ctx context.Context,
	principal entities.Principal,
) (httptransport.ListOrganizationsResponse, error) {
	organizations, err := h.Service.ListAllOrganizations(ctx, principal)
	if err != nil {
		return httptransport.ListOrganizationsResponse{}, err
	}
	return listOrganizationsResponse(organizations), nil
}

func (h Handler) UpdateOrganizationHandler(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
	request httptransport.UpdateOrganizationRequest,
) (httptransport.OrganizationResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	organization, err := h.Service.UpdateOrganization(ctx, principal, organizationID, ports.OrganizationPatch{
		Name:        request.Name,
		Description: request.Description,
	})
	if err != nil {
		logger.Error("http update organization failed",
			"event", "org_http_update_failed",
			"module", "identity-access/organization-service",
			"layer", "transport",
			"actor_id", principal.UserID,
			"organization_id", organizationID,
			"error", err.Error(),
		)
		return httptransport.OrganizationResponse{}, err
	}
	return organizationResponse(organization), nil
}

func (h Handler) DeactivateOrganizationHandler(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
) error {
	logger := application.ResolveLogger(h.Logger)
	if err := h.Service.DeactivateOrganization(ctx, principal, organizationID); err != nil {
		logger.Error("http deactivate organization failed",
			"event", "org_http_deactivate_failed",
			"module", "identity-access/organization-service",
			"layer", "transport",
			"actor_id", principal.UserID,
			"organization_id", organizationID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// AddMemberHandler binds an existing user to the organization by email.
func (h Handler) AddMemberHandler(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
	request httptransport.AddMemberRequest,
) (httptransport.MemberResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("http add member received",
		"event", "org_http_add_member_received",
		"module", "identity-access/organization-service",
		"layer", "transport",
		"actor_id", principal.UserID,
		"organization_id", organizationID,
		"role", request.RoleName,
	)

	member, err := h.Service.AddMember(ctx, principal, organizationID, request.UserEmail, entities.RoleName(request.RoleName))
	if err != nil {
		logger.Error("http add member failed",
			"event", "org_http_add_member_failed",
			"module", "identity-access/organization-service",
			"layer", "transport",
			"actor_id", principal.UserID,
			"organization_id", organizationID,
			"error", err.Error(),
		)
		return httptransport.MemberResponse{}, err
	}
	return memberResponse(member), nil
}

func (h Handler) RemoveMemberHandler(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
	userID string,
) error {
	logger := application.ResolveLogger(h.Logger)
	if err := h.Service.RemoveMember(ctx, principal, organizationID, userID); err != nil {
		logger.Error("http remove member failed",
			"event", "org_http_remove_member_failed",
			"module", "identity-access/organization-service",
			"layer", "transport",
			"actor_id", principal.UserID,
			"organization_id", organizationID,
			"user_id", userID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (h Handler) UpdateMemberRoleHandler(
	ctx context.Context,
	principal entities.Principal,
	membershipID string,
	request httptransport.UpdateMemberRoleRequest,
) (httptransport.MembershipResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	membership, err := h.Service.UpdateMemberRole(ctx, principal, membershipID, entities.RoleName(request.RoleName))
	if err != nil {
		logger.Error("http update member role failed",
			"event", "org_http_update_role_failed",
			"module", "identity-access/organization-service",
			"layer", "transport",
			"actor_id", principal.UserID,
			"membership_id", membershipID,
			"error", err.Error(),
		)
		return httptransport.MembershipResponse{}, err
	}
	return membershipResponse(membership), nil
}

func (h Handler) ListMembersHandler(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
) (httptransport.ListMembersResponse, error) {
	members, err := h.Service.ListMembers(ctx, principal, organizationID)
	if err != nil {
		return httptransport.ListMembersResponse{}, err
	}
	items := make([]httptransport.MemberResponse, 0, len(members))
	for _, member := range members {
		items = append(items, memberResponse(member))
	}
	return httptransport.ListMembersResponse{
		OrganizationID: organizationID,
		Members:        items,
	}, nil
}

func (h Handler) ListUserMembershipsHandler(
	ctx context.Context,
	principal entities.Principal,
) (httptransport.ListMembershipsResponse, error) {
	memberships, err := h.Service.ListUserMemberships(ctx, principal)
	if err != nil {
		return httptransport.ListMembershipsResponse{}, err
	}
	items := make([]httptransport.MembershipResponse, 0, len(memberships))
	for _, membership := range memberships {
		items = append(items, membershipResponse(membership))
	}
	return httptransport.ListMembershipsResponse{Memberships: items}, nil
}

func roleResponse(role entities.Role) httptransport.RoleResponse {
	return httptransport.RoleResponse{
		RoleID:      role.RoleID,
		Name:        string(role.Name),
		Description: role.Description,
		Rank:        role.Rank,
		Permissions: role.Permissions,
	}
}

func organizationResponse(organization entities.Organization) httptransport.OrganizationResponse {
	return httptransport.OrganizationResponse{
		OrganizationID: organization.OrganizationID,
		Name:           organization.Name,
		Slug:           organization.Slug,
		Description:    organization.Description,
		CreatedBy:      organization.CreatedBy,
		IsActive:       organization.IsActive,
		MembersCount:   organization.MembersCount,
		CreatedAt:      organization.CreatedAt,
		UpdatedAt:      organization.UpdatedAt,
	}
}

func listOrganizationsResponse(organizations []entities.Organization) httptransport.ListOrganizationsResponse {
	items := make([]httptransport.OrganizationResponse, 0, len(organizations))
	for _, organization := range organizations {
		items = append(items, organizationResponse(organization))
	}
	return httptransport.ListOrganizationsResponse{Organizations: items}
}

func membershipResponse(membership entities.Membership) httptransport.MembershipResponse {
	return httptransport.MembershipResponse{
		MembershipID:   membership.MembershipID,
		UserID:         membership.UserID,
		OrganizationID: membership.OrganizationID,
		RoleName:       string(membership.Role.Name),
		RoleRank:       membership.Role.Rank,
		IsActive:       membership.IsActive,
		JoinedAt:       membership.JoinedAt,
		UpdatedAt:      membership.UpdatedAt,
	}
}

func memberResponse(member entities.MemberView) httptransport.MemberResponse {
	return httptransport.MemberResponse{
		MembershipResponse: membershipResponse(member.Membership),
		UserEmail:          member.UserEmail,
		UserUsername:       member.UserUsername,
		UserFullName:       member.UserFullName,
	}
}

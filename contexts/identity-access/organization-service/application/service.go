package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"opencast/contexts/identity-access/organization-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/organization-service/domain/errors"
	"opencast/contexts/identity-access/organization-service/domain/services"
	"opencast/contexts/identity-access/organization-service/ports"

	"github.com/gosimple/slug"
)

// Service coordinates the organization registry, the membership ledger and
// the policy engine. Every membership-scoped decision loads the actor's
// active membership fresh from the repository; nothing here caches roles.
type Service struct {
	Repo      ports.Repository
	Directory ports.IdentityDirectory
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (s Service) LookupRole(ctx context.Context, name entities.RoleName) (entities.Role, error) {
	if !entities.IsValidRoleName(name) {
		return entities.Role{}, domainerrors.ErrRoleNotFound
	}
	return s.Repo.LookupRole(ctx, name)
}

func (s Service) ListRoles(ctx context.Context) ([]entities.Role, error) {
	return s.Repo.ListRoles(ctx)
}

// CreateOrganization registers a tenant and makes the creator its owner in
// one atomic storage call.
func (s Service) CreateOrganization(
	ctx context.Context,
	principal entities.Principal,
	name string,
	slugValue string,
	description string,
) (entities.Organization, entities.Membership, error) {
	name = strings.TrimSpace(name)
	slugValue = strings.TrimSpace(slugValue)
	if name == "" {
		return entities.Organization{}, entities.Membership{}, domainerrors.ErrInvalidOrganizationInput
	}
	if slugValue == "" {
		slugValue = slug.Make(name)
	} else if !slug.IsSlug(slugValue) {
		return entities.Organization{}, entities.Membership{}, domainerrors.ErrInvalidOrganizationInput
	}

	organizationID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Organization{}, entities.Membership{}, err
	}
	membershipID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.Organization{}, entities.Membership{}, err
	}

	organization, membership, err := s.Repo.CreateOrganizationWithOwner(ctx, ports.CreateOrganizationInput{
		OrganizationID: organizationID,
		MembershipID:   membershipID,
		Name:           name,
		Slug:           slugValue,
		Description:    strings.TrimSpace(description),
		CreatedBy:      principal.UserID,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return entities.Organization{}, entities.Membership{}, err
	}

	ResolveLogger(s.Logger).Info("organization created",
		"event", "organization_created",
		"module", "identity-access/organization-service",
		"layer", "application",
		"organization_id", organization.OrganizationID,
		"slug", organization.Slug,
		"created_by", principal.UserID,
	)
	return organization, membership, nil
}

// GetOrganization hides existence from non-members: callers without an
// active membership receive NotFound, not Forbidden.
func (s Service) GetOrganization(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
) (entities.Organization, error) {
	return s.visibleOrganization(ctx, principal, strings.TrimSpace(organizationID))
}

func (s Service) ListOrganizations(ctx context.Context, principal entities.Principal) ([]entities.Organization, error) {
	if principal.IsSuperuser {
		return s.Repo.ListAllOrganizations(ctx)
	}
	return s.Repo.ListOrganizationsForUser(ctx, principal.UserID)
}

// ListAllOrganizations is the admin-wide view, distinct from tenant-scoped
// listing. Superusers only.
func (s Service) ListAllOrganizations(ctx context.Context, principal entities.Principal) ([]entities.Organization, error) {
	if !principal.IsSuperuser {
		return nil, domainerrors.ErrForbidden
	}
	return s.Repo.ListAllOrganizations(ctx)
}

func (s Service) UpdateOrganization(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
	patch ports.OrganizationPatch,
) (entities.Organization, error) {
	organization, err := s.visibleOrganization(ctx, principal, strings.TrimSpace(organizationID))
	if err != nil {
		return entities.Organization{}, err
	}
	if err := s.authorize(ctx, principal, organization.OrganizationID, services.ActionUpdateOrganization); err != nil {
		return entities.Organization{}, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return entities.Organization{}, domainerrors.ErrInvalidOrganizationInput
	}

	updated, err := s.Repo.UpdateOrganization(ctx, organization.OrganizationID, patch, s.now())
	if err != nil {
		return entities.Organization{}, err
	}
	ResolveLogger(s.Logger).Info("organization updated",
		"event", "organization_updated",
		"module", "identity-access/organization-service",
		"layer", "application",
		"organization_id", updated.OrganizationID,
		"actor_id", principal.UserID,
	)
	return updated, nil
}

// DeactivateOrganization retires a tenant and explicitly deactivates its
// memberships in the same transaction. Owner rank required.
func (s Service) DeactivateOrganization(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
) error {
	organization, err := s.visibleOrganization(ctx, principal, strings.TrimSpace(organizationID))
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, principal, organization.OrganizationID, services.ActionDeactivateOrganization); err != nil {
		return err
	}

	deactivated, err := s.Repo.DeactivateOrganization(ctx, organization.OrganizationID, s.now())
	if err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("organization deactivated",
		"event", "organization_deactivated",
		"module", "identity-access/organization-service",
		"layer", "application",
		"organization_id", organization.OrganizationID,
		"actor_id", principal.UserID,
		"memberships_deactivated", deactivated,
	)
	return nil
}

// AddMember binds an existing user to the organization. The referenced user
// and role are validated before the ledger write; the (user, organization)
// uniqueness itself is enforced by the storage constraint so concurrent
// calls resolve to exactly one winner.
func (s Service) AddMember(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
	userEmail string,
	roleName entities.RoleName,
) (entities.MemberView, error) {
	organization, err := s.visibleOrganization(ctx, principal, strings.TrimSpace(organizationID))
	if err != nil {
		return entities.MemberView{}, err
	}
	if err := s.authorize(ctx, principal, organization.OrganizationID, services.ActionAddMember); err != nil {
		return entities.MemberView{}, err
	}

	userEmail = strings.ToLower(strings.TrimSpace(userEmail))
	if userEmail == "" {
		return entities.MemberView{}, domainerrors.ErrMemberEmailUnknown
	}
	user, found, err := s.Directory.FindUserByEmail(ctx, userEmail)
	if err != nil {
		return entities.MemberView{}, err
	}
	if !found {
		return entities.MemberView{}, domainerrors.ErrMemberEmailUnknown
	}
	if !entities.IsValidRoleName(roleName) {
		return entities.MemberView{}, domainerrors.ErrRoleNotFound
	}

	membershipID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.MemberView{}, err
	}
	membership, err := s.Repo.CreateMembership(ctx, ports.CreateMembershipInput{
		MembershipID:   membershipID,
		OrganizationID: organization.OrganizationID,
		UserID:         user.UserID,
		RoleName:       roleName,
		JoinedAt:       s.now(),
	})
	if err != nil {
		return entities.MemberView{}, err
	}

	ResolveLogger(s.Logger).Info("member added",
		"event", "membership_created",
		"module", "identity-access/organization-service",
		"layer", "application",
		"organization_id", organization.OrganizationID,
		"membership_id", membership.MembershipID,
		"user_id", user.UserID,
		"role", string(roleName),
		"actor_id", principal.UserID,
	)
	return memberView(membership, user), nil
}

// RemoveMember deactivates the target's membership. The last-owner check and
// the write happen atomically in the repository so two concurrent removals
// of the final two owners cannot both succeed.
func (s Service) RemoveMember(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
	userID string,
) error {
	organization, err := s.visibleOrganization(ctx, principal, strings.TrimSpace(organizationID))
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, principal, organization.OrganizationID, services.ActionRemoveMember); err != nil {
		return err
	}

	membership, err := s.Repo.DeactivateMembership(ctx, organization.OrganizationID, strings.TrimSpace(userID), s.now())
	if err != nil {
		return err
	}
	ResolveLogger(s.Logger).Info("member removed",
		"event", "membership_deactivated",
		"module", "identity-access/organization-service",
		"layer", "application",
		"organization_id", organization.OrganizationID,
		"membership_id", membership.MembershipID,
		"user_id", membership.UserID,
		"actor_id", principal.UserID,
	)
	return nil
}

// UpdateMemberRole changes the role on an existing membership. Demoting the
// organization's last active owner is rejected like removing them would be.
func (s Service) UpdateMemberRole(
	ctx context.Context,
	principal entities.Principal,
	membershipID string,
	roleName entities.RoleName,
) (entities.Membership, error) {
	membership, err := s.visibleMembership(ctx, principal, strings.TrimSpace(membershipID))
	if err != nil {
		return entities.Membership{}, err
	}
	if err := s.authorize(ctx, principal, membership.OrganizationID, services.ActionUpdateMemberRole); err != nil {
		return entities.Membership{}, err
	}
	if !entities.IsValidRoleName(roleName) {
		return entities.Membership{}, domainerrors.ErrRoleNotFound
	}

	updated, err := s.Repo.UpdateMembershipRole(ctx, membership.MembershipID, roleName, s.now())
	if err != nil {
		return entities.Membership{}, err
	}
	ResolveLogger(s.Logger).Info("membership role updated",
		"event", "membership_role_updated",
		"module", "identity-access/organization-service",
		"layer", "application",
		"membership_id", updated.MembershipID,
		"organization_id", updated.OrganizationID,
		"role", string(roleName),
		"actor_id", principal.UserID,
	)
	return updated, nil
}

func (s Service) GetMembership(
	ctx context.Context,
	principal entities.Principal,
	membershipID string,
) (entities.Membership, error) {
	return s.visibleMembership(ctx, principal, strings.TrimSpace(membershipID))
}

// ListMembers returns the organization's active memberships joined with the
// members' identity projections. Any active member may list.
func (s Service) ListMembers(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
) ([]entities.MemberView, error) {
	organization, err := s.visibleOrganization(ctx, principal, strings.TrimSpace(organizationID))
	if err != nil {
		return nil, err
	}
	if !principal.IsSuperuser {
		if err := s.authorize(ctx, principal, organization.OrganizationID, services.ActionListMembers); err != nil {
			return nil, err
		}
	}

	memberships, err := s.Repo.ListActiveMemberships(ctx, organization.OrganizationID)
	if err != nil {
		return nil, err
	}
	views := make([]entities.MemberView, 0, len(memberships))
	for _, membership := range memberships {
		user, found, err := s.Directory.GetUser(ctx, membership.UserID)
		if err != nil {
			return nil, err
		}
		if !found {
			user = ports.UserRef{UserID: membership.UserID}
		}
		views = append(views, memberView(membership, user))
	}
	return views, nil
}

func (s Service) ListUserMemberships(ctx context.Context, principal entities.Principal) ([]entities.Membership, error) {
	return s.Repo.ListActiveMembershipsForUser(ctx, principal.UserID)
}

// CountOrganizationsCreatedBy exposes the creator reference count used by
// identity-service to protect referenced users from deletion.
func (s Service) CountOrganizationsCreatedBy(ctx context.Context, userID string) (int64, error) {
	return s.Repo.CountOrganizationsCreatedBy(ctx, userID)
}

// visibleOrganization resolves an organization through the caller's
// visibility filter. Absence and invisibility are the same NotFound.
func (s Service) visibleOrganization(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
) (entities.Organization, error) {
	if organizationID == "" {
		return entities.Organization{}, domainerrors.ErrOrganizationNotFound
	}
	organization, err := s.Repo.GetOrganization(ctx, organizationID)
	if err != nil {
		return entities.Organization{}, err
	}
	if principal.IsSuperuser {
		return organization, nil
	}
	if !organization.IsActive {
		return entities.Organization{}, domainerrors.ErrOrganizationNotFound
	}
	if _, err := s.Repo.ActiveMembership(ctx, principal.UserID, organizationID); err != nil {
		if errors.Is(err, domainerrors.ErrMembershipNotFound) {
			return entities.Organization{}, domainerrors.ErrOrganizationNotFound
		}
		return entities.Organization{}, err
	}
	return organization, nil
}

// visibleMembership applies membership visibility: the member themself, an
// admin-ranked member of the same organization, or a superuser.
func (s Service) visibleMembership(
	ctx context.Context,
	principal entities.Principal,
	membershipID string,
) (entities.Membership, error) {
	if membershipID == "" {
		return entities.Membership{}, domainerrors.ErrMembershipNotFound
	}
	membership, err := s.Repo.GetMembership(ctx, membershipID)
	if err != nil {
		return entities.Membership{}, err
	}
	if principal.IsSuperuser || membership.UserID == principal.UserID {
		return membership, nil
	}
	actor, err := s.Repo.ActiveMembership(ctx, principal.UserID, membership.OrganizationID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrMembershipNotFound) {
			return entities.Membership{}, domainerrors.ErrMembershipNotFound
		}
		return entities.Membership{}, err
	}
	if actor.Role.Rank < entities.RankAdmin {
		return entities.Membership{}, domainerrors.ErrMembershipNotFound
	}
	return membership, nil
}

// authorize loads the actor's active membership fresh and evaluates the
// policy table. No membership means denial for every action here, even for
// superusers: mutation rights are membership-scoped.
func (s Service) authorize(
	ctx context.Context,
	principal entities.Principal,
	organizationID string,
	action services.Action,
) error {
	membership, err := s.Repo.ActiveMembership(ctx, principal.UserID, organizationID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrMembershipNotFound) {
			return domainerrors.ErrForbidden
		}
		return err
	}
	if !services.Allows(&membership, action) {
		return domainerrors.ErrForbidden
	}
	return nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func memberView(membership entities.Membership, user ports.UserRef) entities.MemberView {
	return entities.MemberView{
		Membership:   membership,
		UserEmail:    user.Email,
		UserUsername: user.Username,
		UserFullName: user.FullName,
	}
}

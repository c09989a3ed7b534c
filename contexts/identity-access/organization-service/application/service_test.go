package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"opencast/contexts/identity-access/organization-service/adapters/memory"
	"opencast/contexts/identity-access/organization-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/organization-service/domain/errors"
	"opencast/contexts/identity-access/organization-service/ports"
)

func newTestService() (Service, *memory.Store) {
	store := memory.NewStore()
	service := Service{
		Repo:      store,
		Directory: store,
		Clock:     store,
		IDGen:     store,
	}
	return service, store
}

func seedUser(store *memory.Store, userID string, email string) {
	store.UpsertUser(ports.UserRef{
		UserID:   userID,
		Email:    email,
		Username: userID,
		IsActive: true,
	})
}

func asPrincipal(userID string) entities.Principal {
	return entities.Principal{UserID: userID}
}

func superuser(userID string) entities.Principal {
	return entities.Principal{UserID: userID, IsSuperuser: true}
}

// faultyMembershipRepo simulates a storage outage on membership lookups.
type faultyMembershipRepo struct {
	*memory.Store
	err error
}

func (r faultyMembershipRepo) ActiveMembership(context.Context, string, string) (entities.Membership, error) {
	return entities.Membership{}, r.err
}

// failingCreateRepo simulates a storage failure mid-creation.
type failingCreateRepo struct {
	*memory.Store
	err error
}

func (r failingCreateRepo) CreateOrganizationWithOwner(context.Context, ports.CreateOrganizationInput) (entities.Organization, entities.Membership, error) {
	return entities.Organization{}, entities.Membership{}, r.err
}

func TestCreateOrganizationMakesCreatorOwner(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")

	org, membership, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme Media", "", "video studio")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	if org.Slug != "acme-media" {
		t.Fatalf("expected derived slug acme-media, got %q", org.Slug)
	}
	if org.MembersCount != 1 {
		t.Fatalf("expected one member, got %d", org.MembersCount)
	}
	if membership.Role.Name != entities.RoleOwner {
		t.Fatalf("creator should be owner, got %s", membership.Role.Name)
	}
	if membership.UserID != "user_founder" {
		t.Fatalf("membership bound to %s", membership.UserID)
	}
}

func TestCreateOrganizationRejectsDuplicateSlug(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_a", "a@acme.test")
	seedUser(store, "user_b", "b@acme.test")

	if _, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_a"), "Acme", "acme", ""); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_b"), "Other Acme", "acme", "")
	if !errors.Is(err, domainerrors.ErrSlugTaken) {
		t.Fatalf("expected slug conflict, got %v", err)
	}

	// Creation is all-or-nothing: the failed attempt must not leave an
	// owner membership behind.
	memberships, err := service.ListUserMemberships(context.Background(), asPrincipal("user_b"))
	if err != nil {
		t.Fatalf("list memberships failed: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("failed creation left %d memberships", len(memberships))
	}
}

func TestCreateOrganizationRejectsInvalidInput(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_a", "a@acme.test")

	if _, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_a"), "  ", "", ""); !errors.Is(err, domainerrors.ErrInvalidOrganizationInput) {
		t.Fatalf("expected invalid input for empty name, got %v", err)
	}
	if _, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_a"), "Acme", "Not A Slug!", ""); !errors.Is(err, domainerrors.ErrInvalidOrganizationInput) {
		t.Fatalf("expected invalid input for malformed slug, got %v", err)
	}
}

func TestCreateOrganizationFailureLeavesNoArtifacts(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")

	storageErr := errors.New("insert failed: connection reset")
	service.Repo = failingCreateRepo{Store: store, err: storageErr}

	_, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected the storage error to surface, got %v", err)
	}

	service.Repo = store
	orgs, err := service.ListOrganizations(context.Background(), asPrincipal("user_founder"))
	if err != nil {
		t.Fatalf("list organizations failed: %v", err)
	}
	if len(orgs) != 0 {
		t.Fatalf("failed creation left %d organizations", len(orgs))
	}
	memberships, err := service.ListUserMemberships(context.Background(), asPrincipal("user_founder"))
	if err != nil {
		t.Fatalf("list memberships failed: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("failed creation left %d memberships", len(memberships))
	}
}

func TestStorageFailuresAreNotMaskedAsAuthorization(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	member, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember)
	if err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	storageErr := errors.New("dial tcp: connection refused")
	service.Repo = faultyMembershipRepo{Store: store, err: storageErr}

	if _, err := service.GetOrganization(context.Background(), asPrincipal("user_founder"), org.OrganizationID); !errors.Is(err, storageErr) {
		t.Fatalf("visibility check must surface storage failures, got %v", err)
	}
	if _, err := service.GetMembership(context.Background(), asPrincipal("user_founder"), member.MembershipID); !errors.Is(err, storageErr) {
		t.Fatalf("membership visibility must surface storage failures, got %v", err)
	}
	name := "Renamed"
	if _, err := service.UpdateOrganization(context.Background(), asPrincipal("user_founder"), org.OrganizationID, ports.OrganizationPatch{Name: &name}); !errors.Is(err, storageErr) {
		t.Fatalf("authorization must surface storage failures, got %v", err)
	}
}

func TestGetOrganizationHiddenFromNonMembers(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_outsider", "outsider@elsewhere.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}

	if _, err := service.GetOrganization(context.Background(), asPrincipal("user_founder"), org.OrganizationID); err != nil {
		t.Fatalf("member should see the organization: %v", err)
	}
	_, err = service.GetOrganization(context.Background(), asPrincipal("user_outsider"), org.OrganizationID)
	if !errors.Is(err, domainerrors.ErrOrganizationNotFound) {
		t.Fatalf("non-member must get not-found, got %v", err)
	}
	if _, err := service.GetOrganization(context.Background(), superuser("user_admin"), org.OrganizationID); err != nil {
		t.Fatalf("superuser should see any organization: %v", err)
	}
}

func TestUpdateOrganizationRequiresAdminRank(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	name := "Acme Studios"
	_, err = service.UpdateOrganization(context.Background(), asPrincipal("user_member"), org.OrganizationID, ports.OrganizationPatch{Name: &name})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("member rank must not update the organization, got %v", err)
	}

	updated, err := service.UpdateOrganization(context.Background(), asPrincipal("user_founder"), org.OrganizationID, ports.OrganizationPatch{Name: &name})
	if err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if updated.Name != "Acme Studios" {
		t.Fatalf("unexpected name %q", updated.Name)
	}
}

func TestSuperuserWithoutMembershipCannotMutate(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}

	name := "Renamed"
	_, err = service.UpdateOrganization(context.Background(), superuser("user_staff"), org.OrganizationID, ports.OrganizationPatch{Name: &name})
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("superuser without membership must be denied mutation, got %v", err)
	}
}

func TestAddMemberValidation(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}

	_, err = service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "ghost@acme.test", entities.RoleMember)
	if !errors.Is(err, domainerrors.ErrMemberEmailUnknown) {
		t.Fatalf("expected unknown email error, got %v", err)
	}
	_, err = service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleName("boss"))
	if !errors.Is(err, domainerrors.ErrRoleNotFound) {
		t.Fatalf("expected role error, got %v", err)
	}

	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	_, err = service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleViewer)
	if !errors.Is(err, domainerrors.ErrMembershipExists) {
		t.Fatalf("expected duplicate membership conflict, got %v", err)
	}
}

func TestConcurrentAddMemberSingleWinner(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domainerrors.ErrMembershipExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d conflicts", successes, conflicts)
	}
}

func TestRemoveLastOwnerRejected(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_second", "second@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}

	err = service.RemoveMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "user_founder")
	if !errors.Is(err, domainerrors.ErrLastOwner) {
		t.Fatalf("removing the only owner must fail, got %v", err)
	}

	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "second@acme.test", entities.RoleOwner); err != nil {
		t.Fatalf("add second owner failed: %v", err)
	}
	if err := service.RemoveMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "user_founder"); err != nil {
		t.Fatalf("removal with a second owner should succeed: %v", err)
	}
}

func TestDemoteLastOwnerRejected(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")

	org, membership, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}

	_, err = service.UpdateMemberRole(context.Background(), asPrincipal("user_founder"), membership.MembershipID, entities.RoleAdmin)
	if !errors.Is(err, domainerrors.ErrLastOwner) {
		t.Fatalf("demoting the only owner must fail, got %v", err)
	}
	if _, err := service.GetOrganization(context.Background(), asPrincipal("user_founder"), org.OrganizationID); err != nil {
		t.Fatalf("organization should be unchanged: %v", err)
	}
}

func TestRemoveMemberIsIdempotentForInactive(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	if err := service.RemoveMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "user_member"); err != nil {
		t.Fatalf("first removal failed: %v", err)
	}
	if err := service.RemoveMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "user_member"); err != nil {
		t.Fatalf("repeat removal should be a no-op success: %v", err)
	}
	err = service.RemoveMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "user_ghost")
	if !errors.Is(err, domainerrors.ErrMembershipNotFound) {
		t.Fatalf("removing a non-member must be not-found, got %v", err)
	}
}

func TestMembershipVisibility(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")
	seedUser(store, "user_viewer", "viewer@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	member, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember)
	if err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "viewer@acme.test", entities.RoleViewer); err != nil {
		t.Fatalf("add viewer failed: %v", err)
	}

	if _, err := service.GetMembership(context.Background(), asPrincipal("user_member"), member.MembershipID); err != nil {
		t.Fatalf("members see their own membership: %v", err)
	}
	if _, err := service.GetMembership(context.Background(), asPrincipal("user_founder"), member.MembershipID); err != nil {
		t.Fatalf("admins see memberships in their organization: %v", err)
	}
	_, err = service.GetMembership(context.Background(), asPrincipal("user_viewer"), member.MembershipID)
	if !errors.Is(err, domainerrors.ErrMembershipNotFound) {
		t.Fatalf("below-admin peers must get not-found, got %v", err)
	}
}

func TestListOrganizationsScoping(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_a", "a@acme.test")
	seedUser(store, "user_b", "b@acme.test")

	if _, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_a"), "Acme", "acme", ""); err != nil {
		t.Fatalf("create acme failed: %v", err)
	}
	if _, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_b"), "Globex", "globex", ""); err != nil {
		t.Fatalf("create globex failed: %v", err)
	}

	mine, err := service.ListOrganizations(context.Background(), asPrincipal("user_a"))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(mine) != 1 || mine[0].Slug != "acme" {
		t.Fatalf("expected only acme, got %+v", mine)
	}

	all, err := service.ListOrganizations(context.Background(), superuser("user_staff"))
	if err != nil {
		t.Fatalf("superuser list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("superuser should see both organizations, got %d", len(all))
	}

	if _, err := service.ListAllOrganizations(context.Background(), asPrincipal("user_a")); !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("platform-wide listing is superuser only, got %v", err)
	}
}

func TestDeactivateOrganizationCascades(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	if err := service.DeactivateOrganization(context.Background(), asPrincipal("user_founder"), org.OrganizationID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	_, err = service.GetOrganization(context.Background(), asPrincipal("user_founder"), org.OrganizationID)
	if !errors.Is(err, domainerrors.ErrOrganizationNotFound) {
		t.Fatalf("deactivated organization must be hidden, got %v", err)
	}
	memberships, err := service.ListUserMemberships(context.Background(), asPrincipal("user_member"))
	if err != nil {
		t.Fatalf("list memberships failed: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("memberships should be deactivated with the organization, got %d", len(memberships))
	}
}

func TestDeactivateOrganizationRequiresOwnerRank(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_admin", "admin@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "admin@acme.test", entities.RoleAdmin); err != nil {
		t.Fatalf("add admin failed: %v", err)
	}

	err = service.DeactivateOrganization(context.Background(), asPrincipal("user_admin"), org.OrganizationID)
	if !errors.Is(err, domainerrors.ErrForbidden) {
		t.Fatalf("admin rank must not deactivate the organization, got %v", err)
	}
}

func TestListMembersIncludesIdentityProjection(t *testing.T) {
	service, store := newTestService()
	seedUser(store, "user_founder", "founder@acme.test")
	seedUser(store, "user_member", "member@acme.test")

	org, _, err := service.CreateOrganization(context.Background(), asPrincipal("user_founder"), "Acme", "acme", "")
	if err != nil {
		t.Fatalf("create organization failed: %v", err)
	}
	if _, err := service.AddMember(context.Background(), asPrincipal("user_founder"), org.OrganizationID, "member@acme.test", entities.RoleMember); err != nil {
		t.Fatalf("add member failed: %v", err)
	}

	members, err := service.ListMembers(context.Background(), asPrincipal("user_member"), org.OrganizationID)
	if err != nil {
		t.Fatalf("any active member may list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected two members, got %d", len(members))
	}
	for _, member := range members {
		if member.UserEmail == "" {
			t.Fatalf("member view missing email for %s", member.UserID)
		}
	}
}

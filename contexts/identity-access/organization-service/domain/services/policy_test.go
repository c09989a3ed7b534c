package services

import (
	"testing"

	"opencast/contexts/identity-access/organization-service/domain/entities"
)

func activeMembership(rank int) *entities.Membership {
	return &entities.Membership{
		MembershipID: "mem_000001",
		Role:         entities.Role{Rank: rank},
		IsActive:     true,
	}
}

func TestAllowsRankThresholds(t *testing.T) {
	cases := []struct {
		name    string
		rank    int
		action  Action
		allowed bool
	}{
		{"viewer views organization", entities.RankViewer, ActionViewOrganization, true},
		{"viewer lists members", entities.RankViewer, ActionListMembers, true},
		{"viewer cannot add members", entities.RankViewer, ActionAddMember, false},
		{"member cannot update organization", entities.RankMember, ActionUpdateOrganization, false},
		{"admin updates organization", entities.RankAdmin, ActionUpdateOrganization, true},
		{"admin adds members", entities.RankAdmin, ActionAddMember, true},
		{"admin removes members", entities.RankAdmin, ActionRemoveMember, true},
		{"admin updates roles", entities.RankAdmin, ActionUpdateMemberRole, true},
		{"admin cannot deactivate organization", entities.RankAdmin, ActionDeactivateOrganization, false},
		{"owner deactivates organization", entities.RankOwner, ActionDeactivateOrganization, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allows(activeMembership(tc.rank), tc.action); got != tc.allowed {
				t.Fatalf("Allows(rank=%d, %s) = %t, want %t", tc.rank, tc.action, got, tc.allowed)
			}
		})
	}
}

func TestAllowsFailsClosed(t *testing.T) {
	if Allows(nil, ActionViewOrganization) {
		t.Fatalf("nil membership must be denied")
	}

	inactive := activeMembership(entities.RankOwner)
	inactive.IsActive = false
	if Allows(inactive, ActionViewOrganization) {
		t.Fatalf("inactive membership must be denied")
	}

	if Allows(activeMembership(entities.RankOwner), Action("organization.unknown")) {
		t.Fatalf("unknown action must be denied")
	}
}

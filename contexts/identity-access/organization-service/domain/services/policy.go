package services

import (
	"opencast/contexts/identity-access/organization-service/domain/entities"
)

// Action is a membership-scoped operation subject to the policy table.
type Action string

const (
	ActionViewOrganization       Action = "organization.view"
	ActionUpdateOrganization     Action = "organization.update"
	ActionDeactivateOrganization Action = "organization.deactivate"
	ActionAddMember              Action = "membership.add"
	ActionRemoveMember           Action = "membership.remove"
	ActionUpdateMemberRole       Action = "membership.update_role"
	ActionListMembers            Action = "membership.list"
)

// minimumRank is the policy table: the lowest role rank allowed to perform
// each action. Authorization is rank-based, so a future role seeded with an
// admin-equivalent rank inherits admin rights without a whitelist edit.
var minimumRank = map[Action]int{
	ActionViewOrganization:       entities.RankViewer,
	ActionListMembers:            entities.RankViewer,
	ActionUpdateOrganization:     entities.RankAdmin,
	ActionAddMember:              entities.RankAdmin,
	ActionRemoveMember:           entities.RankAdmin,
	ActionUpdateMemberRole:       entities.RankAdmin,
	ActionDeactivateOrganization: entities.RankOwner,
}

// Allows decides whether a freshly loaded active membership may perform the
// action. A nil membership (no active membership) denies everything: the
// engine fails closed regardless of authentication state.
func Allows(membership *entities.Membership, action Action) bool {
	if membership == nil || !membership.IsActive {
		return false
	}
	required, known := minimumRank[action]
	if !known {
		return false
	}
	return membership.Role.Rank >= required
}

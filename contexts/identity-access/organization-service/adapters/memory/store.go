package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"opencast/contexts/identity-access/organization-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/organization-service/domain/errors"
	"opencast/contexts/identity-access/organization-service/ports"
)

type organizationRecord struct {
	OrganizationID string
	Name           string
	Slug           string
	Description    string
	CreatedBy      string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type membershipRecord struct {
	MembershipID   string
	UserID         string
	OrganizationID string
	RoleName       entities.RoleName
	IsActive       bool
	JoinedAt       time.Time
	UpdatedAt      time.Time
}

type outboxRecord struct {
	ports.OutboxMessage
	Published bool
}

// Store is the in-memory twin of the postgres adapter, used by tests and
// the development composition. The single mutex stands in for the storage
// transaction boundary: every invariant check and its write happen under
// one critical section.
type Store struct {
	mu sync.RWMutex

	rolesByName         map[entities.RoleName]entities.Role
	organizationsByID   map[string]organizationRecord
	organizationBySlug  map[string]string
	membershipsByID     map[string]membershipRecord
	membershipByUserOrg map[string]string
	usersByID           map[string]ports.UserRef
	usersByEmail        map[string]string
	outbox              []outboxRecord
	sequence            uint64
}

func NewStore() *Store {
	now := time.Now().UTC()
	seeded := func(name entities.RoleName, description string) entities.Role {
		return entities.Role{
			RoleID:      "role_" + string(name),
			Name:        name,
			Description: description,
			Rank:        entities.RankOf(name),
			Permissions: json.RawMessage(`{}`),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return &Store{
		rolesByName: map[entities.RoleName]entities.Role{
			entities.RoleOwner:  seeded(entities.RoleOwner, "Full control including member administration"),
			entities.RoleAdmin:  seeded(entities.RoleAdmin, "Organization and member administration"),
			entities.RoleMember: seeded(entities.RoleMember, "Standard member access"),
			entities.RoleViewer: seeded(entities.RoleViewer, "Read-only access"),
		},
		organizationsByID:   make(map[string]organizationRecord),
		organizationBySlug:  make(map[string]string),
		membershipsByID:     make(map[string]membershipRecord),
		membershipByUserOrg: make(map[string]string),
		usersByID:           make(map[string]ports.UserRef),
		usersByEmail:        make(map[string]string),
	}
}

// UpsertUser registers an identity projection so membership operations can
// resolve it. The composition root feeds this from identity-service.
func (s *Store) UpsertUser(user ports.UserRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(user.Email))
	s.usersByID[user.UserID] = user
	if email != "" {
		s.usersByEmail[email] = user.UserID
	}
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (ports.UserRef, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return ports.UserRef{}, false, nil
	}
	user, ok := s.usersByID[userID]
	if !ok || !user.IsActive {
		return ports.UserRef{}, false, nil
	}
	return user, true, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (ports.UserRef, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByID[userID]
	return user, ok, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return fmt.Sprintf("mem_%06d", s.sequence), nil
}

func (s *Store) LookupRole(_ context.Context, name entities.RoleName) (entities.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.rolesByName[name]
	if !ok {
		return entities.Role{}, domainerrors.ErrRoleNotFound
	}
	return role, nil
}

func (s *Store) ListRoles(_ context.Context) ([]entities.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]entities.Role, 0, len(s.rolesByName))
	for _, role := range s.rolesByName {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Rank == roles[j].Rank {
			return roles[i].Name < roles[j].Name
		}
		return roles[i].Rank > roles[j].Rank
	})
	return roles, nil
}

func (s *Store) CreateOrganizationWithOwner(
	_ context.Context,
	input ports.CreateOrganizationInput,
) (entities.Organization, entities.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if _, exists := s.organizationBySlug[slug]; exists {
		return entities.Organization{}, entities.Membership{}, domainerrors.ErrSlugTaken
	}
	ownerRole, ok := s.rolesByName[entities.RoleOwner]
	if !ok {
		return entities.Organization{}, entities.Membership{}, domainerrors.ErrRoleNotFound
	}

	now := input.CreatedAt.UTC()
	org := organizationRecord{
		OrganizationID: input.OrganizationID,
		Name:           input.Name,
		Slug:           slug,
		Description:    input.Description,
		CreatedBy:      input.CreatedBy,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	membership := membershipRecord{
		MembershipID:   input.MembershipID,
		UserID:         input.CreatedBy,
		OrganizationID: input.OrganizationID,
		RoleName:       entities.RoleOwner,
		IsActive:       true,
		JoinedAt:       now,
		UpdatedAt:      now,
	}

	s.organizationsByID[org.OrganizationID] = org
	s.organizationBySlug[slug] = org.OrganizationID
	s.membershipsByID[membership.MembershipID] = membership
	s.membershipByUserOrg[userOrgKey(membership.UserID, membership.OrganizationID)] = membership.MembershipID
	s.appendOutboxLocked("organization.created", map[string]any{
		"organization_id": org.OrganizationID,
		"slug":            org.Slug,
		"created_by":      org.CreatedBy,
	}, now)

	return s.organizationEntityLocked(org), s.membershipEntityLocked(membership, ownerRole), nil
}

func (s *Store) GetOrganization(_ context.Context, organizationID string) (entities.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.organizationsByID[organizationID]
	if !ok {
		return entities.Organization{}, domainerrors.ErrOrganizationNotFound
	}
	return s.organizationEntityLocked(org), nil
}

func (s *Store) ListOrganizationsForUser(_ context.Context, userID string) ([]entities.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entities.Organization
	for _, membership := range s.membershipsByID {
		if membership.UserID != userID || !membership.IsActive {
			continue
		}
		org, ok := s.organizationsByID[membership.OrganizationID]
		if !ok || !org.IsActive {
			continue
		}
		items = append(items, s.organizationEntityLocked(org))
	}
	sortOrganizations(items)
	return items, nil
}

func (s *Store) ListAllOrganizations(_ context.Context) ([]entities.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Organization, 0, len(s.organizationsByID))
	for _, org := range s.organizationsByID {
		items = append(items, s.organizationEntityLocked(org))
	}
	sortOrganizations(items)
	return items, nil
}

func (s *Store) UpdateOrganization(
	_ context.Context,
	organizationID string,
	patch ports.OrganizationPatch,
	now time.Time,
) (entities.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.organizationsByID[organizationID]
	if !ok {
		return entities.Organization{}, domainerrors.ErrOrganizationNotFound
	}
	if patch.Name != nil {
		org.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		org.Description = strings.TrimSpace(*patch.Description)
	}
	org.UpdatedAt = now.UTC()
	s.organizationsByID[organizationID] = org
	s.appendOutboxLocked("organization.updated", map[string]any{
		"organization_id": org.OrganizationID,
	}, now.UTC())
	return s.organizationEntityLocked(org), nil
}

func (s *Store) DeactivateOrganization(_ context.Context, organizationID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.organizationsByID[organizationID]
	if !ok {
		return 0, domainerrors.ErrOrganizationNotFound
	}
	timestamp := now.UTC()
	org.IsActive = false
	org.UpdatedAt = timestamp
	s.organizationsByID[organizationID] = org

	deactivated := 0
	for id, membership := range s.membershipsByID {
		if membership.OrganizationID != organizationID || !membership.IsActive {
			continue
		}
		membership.IsActive = false
		membership.UpdatedAt = timestamp
		s.membershipsByID[id] = membership
		deactivated++
	}
	s.appendOutboxLocked("organization.deactivated", map[string]any{
		"organization_id":         organizationID,
		"memberships_deactivated": deactivated,
	}, timestamp)
	return deactivated, nil
}

func (s *Store) CountOrganizationsCreatedBy(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, org := range s.organizationsByID {
		if org.CreatedBy == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ActiveMembership(_ context.Context, userID string, organizationID string) (entities.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	membershipID, ok := s.membershipByUserOrg[userOrgKey(userID, organizationID)]
	if !ok {
		return entities.Membership{}, domainerrors.ErrMembershipNotFound
	}
	membership := s.membershipsByID[membershipID]
	if !membership.IsActive {
		return entities.Membership{}, domainerrors.ErrMembershipNotFound
	}
	return s.membershipEntityLocked(membership, s.rolesByName[membership.RoleName]), nil
}

func (s *Store) GetMembership(_ context.Context, membershipID string) (entities.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	membership, ok := s.membershipsByID[membershipID]
	if !ok {
		return entities.Membership{}, domainerrors.ErrMembershipNotFound
	}
	return s.membershipEntityLocked(membership, s.rolesByName[membership.RoleName]), nil
}

func (s *Store) CreateMembership(_ context.Context, input ports.CreateMembershipInput) (entities.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.organizationsByID[input.OrganizationID]; !ok {
		return entities.Membership{}, domainerrors.ErrOrganizationNotFound
	}
	role, ok := s.rolesByName[input.RoleName]
	if !ok {
		return entities.Membership{}, domainerrors.ErrRoleNotFound
	}
	key := userOrgKey(input.UserID, input.OrganizationID)
	if _, exists := s.membershipByUserOrg[key]; exists {
		return entities.Membership{}, domainerrors.ErrMembershipExists
	}

	now := input.JoinedAt.UTC()
	membership := membershipRecord{
		MembershipID:   input.MembershipID,
		UserID:         input.UserID,
		OrganizationID: input.OrganizationID,
		RoleName:       input.RoleName,
		IsActive:       true,
		JoinedAt:       now,
		UpdatedAt:      now,
	}
	s.membershipsByID[membership.MembershipID] = membership
	s.membershipByUserOrg[key] = membership.MembershipID
	s.appendOutboxLocked("membership.created", map[string]any{
		"membership_id":   membership.MembershipID,
		"organization_id": membership.OrganizationID,
		"user_id":         membership.UserID,
		"role":            string(membership.RoleName),
	}, now)
	return s.membershipEntityLocked(membership, role), nil
}

func (s *Store) DeactivateMembership(
	_ context.Context,
	organizationID string,
	userID string,
	now time.Time,
) (entities.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	membershipID, ok := s.membershipByUserOrg[userOrgKey(userID, organizationID)]
	if !ok {
		return entities.Membership{}, domainerrors.ErrMembershipNotFound
	}
	membership := s.membershipsByID[membershipID]
	if !membership.IsActive {
		// Already deactivated: revocation is idempotent.
		return s.membershipEntityLocked(membership, s.rolesByName[membership.RoleName]), nil
	}
	if membership.RoleName == entities.RoleOwner && s.countActiveOwnersLocked(organizationID) <= 1 {
		return entities.Membership{}, domainerrors.ErrLastOwner
	}

	timestamp := now.UTC()
	membership.IsActive = false
	membership.UpdatedAt = timestamp
	s.membershipsByID[membershipID] = membership
	s.appendOutboxLocked("membership.deactivated", map[string]any{
		"membership_id":   membership.MembershipID,
		"organization_id": membership.OrganizationID,
		"user_id":         membership.UserID,
	}, timestamp)
	return s.membershipEntityLocked(membership, s.rolesByName[membership.RoleName]), nil
}

func (s *Store) UpdateMembershipRole(
	_ context.Context,
	membershipID string,
	role entities.RoleName,
	now time.Time,
) (entities.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	membership, ok := s.membershipsByID[membershipID]
	if !ok {
		return entities.Membership{}, domainerrors.ErrMembershipNotFound
	}
	newRole, ok := s.rolesByName[role]
	if !ok {
		return entities.Membership{}, domainerrors.ErrRoleNotFound
	}
	if membership.IsActive &&
		membership.RoleName == entities.RoleOwner &&
		role != entities.RoleOwner &&
		s.countActiveOwnersLocked(membership.OrganizationID) <= 1 {
		return entities.Membership{}, domainerrors.ErrLastOwner
	}

	membership.RoleName = role
	membership.UpdatedAt = now.UTC()
	s.membershipsByID[membershipID] = membership
	s.appendOutboxLocked("membership.role_updated", map[string]any{
		"membership_id":   membership.MembershipID,
		"organization_id": membership.OrganizationID,
		"user_id":         membership.UserID,
		"role":            string(role),
	}, now.UTC())
	return s.membershipEntityLocked(membership, newRole), nil
}

func (s *Store) ListActiveMemberships(_ context.Context, organizationID string) ([]entities.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entities.Membership
	for _, membership := range s.membershipsByID {
		if membership.OrganizationID != organizationID || !membership.IsActive {
			continue
		}
		items = append(items, s.membershipEntityLocked(membership, s.rolesByName[membership.RoleName]))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].JoinedAt.Before(items[j].JoinedAt) })
	return items, nil
}

func (s *Store) ListActiveMembershipsForUser(_ context.Context, userID string) ([]entities.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []entities.Membership
	for _, membership := range s.membershipsByID {
		if membership.UserID != userID || !membership.IsActive {
			continue
		}
		items = append(items, s.membershipEntityLocked(membership, s.rolesByName[membership.RoleName]))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].JoinedAt.Before(items[j].JoinedAt) })
	return items, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]ports.OutboxMessage, 0, limit)
	for _, record := range s.outbox {
		if record.Published {
			continue
		}
		items = append(items, record.OutboxMessage)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].OutboxID == outboxID {
			s.outbox[i].Published = true
			return nil
		}
	}
	return nil
}

func (s *Store) countActiveOwnersLocked(organizationID string) int {
	count := 0
	for _, membership := range s.membershipsByID {
		if membership.OrganizationID == organizationID &&
			membership.IsActive &&
			membership.RoleName == entities.RoleOwner {
			count++
		}
	}
	return count
}

func (s *Store) membersCountLocked(organizationID string) int {
	count := 0
	for _, membership := range s.membershipsByID {
		if membership.OrganizationID == organizationID && membership.IsActive {
			count++
		}
	}
	return count
}

func (s *Store) organizationEntityLocked(org organizationRecord) entities.Organization {
	return entities.Organization{
		OrganizationID: org.OrganizationID,
		Name:           org.Name,
		Slug:           org.Slug,
		Description:    org.Description,
		CreatedBy:      org.CreatedBy,
		IsActive:       org.IsActive,
		MembersCount:   s.membersCountLocked(org.OrganizationID),
		CreatedAt:      org.CreatedAt,
		UpdatedAt:      org.UpdatedAt,
	}
}

func (s *Store) membershipEntityLocked(membership membershipRecord, role entities.Role) entities.Membership {
	return entities.Membership{
		MembershipID:   membership.MembershipID,
		UserID:         membership.UserID,
		OrganizationID: membership.OrganizationID,
		Role:           role,
		IsActive:       membership.IsActive,
		JoinedAt:       membership.JoinedAt,
		UpdatedAt:      membership.UpdatedAt,
	}
}

func (s *Store) appendOutboxLocked(eventType string, payload map[string]any, occurredAt time.Time) {
	s.sequence++
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte(`{}`)
	}
	s.outbox = append(s.outbox, outboxRecord{
		OutboxMessage: ports.OutboxMessage{
			OutboxID:  fmt.Sprintf("outbox_%06d", s.sequence),
			EventType: eventType,
			Payload:   encoded,
			CreatedAt: occurredAt,
		},
	})
}

// sortOrganizations orders listings by name, matching the postgres
// adapter's "name ASC".
func sortOrganizations(items []entities.Organization) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name == items[j].Name {
			return items[i].OrganizationID < items[j].OrganizationID
		}
		return items[i].Name < items[j].Name
	})
}

func userOrgKey(userID string, organizationID string) string {
	return userID + "|" + organizationID
}

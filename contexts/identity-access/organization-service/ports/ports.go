package ports

import (
	"context"
	"time"

	"opencast/contexts/identity-access/organization-service/domain/entities"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for organization/membership rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// UserRef is the identity projection this context needs about a user. The
// user record itself belongs to identity-service; this is a read model.
type UserRef struct {
	UserID   string
	Email    string
	Username string
	FullName string
	IsActive bool
}

// IdentityDirectory resolves user references for membership operations and
// member listings. Implementations live at the composition root so the two
// identity-access services stay import-independent.
type IdentityDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (UserRef, bool, error)
	GetUser(ctx context.Context, userID string) (UserRef, bool, error)
}

// CreateOrganizationInput is persisted atomically together with the
// creator's owner membership: both rows or neither.
type CreateOrganizationInput struct {
	OrganizationID string
	MembershipID   string
	Name           string
	Slug           string
	Description    string
	CreatedBy      string
	CreatedAt      time.Time
}

// CreateMembershipInput adds one user to one organization with one role.
type CreateMembershipInput struct {
	MembershipID   string
	OrganizationID string
	UserID         string
	RoleName       entities.RoleName
	JoinedAt       time.Time
}

// OrganizationPatch carries the updatable organization fields. Nil means
// "leave unchanged".
type OrganizationPatch struct {
	Name        *string
	Description *string
}

// Repository is the storage boundary of the organization core. Mutations
// that guard invariants (membership uniqueness, last-owner protection,
// organization+owner creation) are single calls so concurrent writers are
// serialized at the storage layer, not by in-process locking.
type Repository interface {
	LookupRole(ctx context.Context, name entities.RoleName) (entities.Role, error)
	ListRoles(ctx context.Context) ([]entities.Role, error)

	CreateOrganizationWithOwner(ctx context.Context, input CreateOrganizationInput) (entities.Organization, entities.Membership, error)
	GetOrganization(ctx context.Context, organizationID string) (entities.Organization, error)
	ListOrganizationsForUser(ctx context.Context, userID string) ([]entities.Organization, error)
	ListAllOrganizations(ctx context.Context) ([]entities.Organization, error)
	UpdateOrganization(ctx context.Context, organizationID string, patch OrganizationPatch, now time.Time) (entities.Organization, error)
	// DeactivateOrganization marks the organization inactive and explicitly
	// deactivates all of its active memberships in the same transaction.
	// Returns the number of memberships deactivated.
	DeactivateOrganization(ctx context.Context, organizationID string, now time.Time) (int, error)
	CountOrganizationsCreatedBy(ctx context.Context, userID string) (int64, error)

	// ActiveMembership is the fresh lookup behind every authorization
	// decision; callers never cache its result.
	ActiveMembership(ctx context.Context, userID string, organizationID string) (entities.Membership, error)
	GetMembership(ctx context.Context, membershipID string) (entities.Membership, error)
	CreateMembership(ctx context.Context, input CreateMembershipInput) (entities.Membership, error)
	// DeactivateMembership enforces the last-owner invariant atomically with
	// respect to concurrent writers before flipping is_active off.
	DeactivateMembership(ctx context.Context, organizationID string, userID string, now time.Time) (entities.Membership, error)
	// UpdateMembershipRole applies the same invariant when the change would
	// demote the last remaining active owner.
	UpdateMembershipRole(ctx context.Context, membershipID string, role entities.RoleName, now time.Time) (entities.Membership, error)
	ListActiveMemberships(ctx context.Context, organizationID string) ([]entities.Membership, error)
	ListActiveMembershipsForUser(ctx context.Context, userID string) ([]entities.Membership, error)
}

// OutboxMessage is a pending audit event awaiting relay to the bus.
type OutboxMessage struct {
	OutboxID  string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// OutboxRepository supports worker relay polling and acknowledgement.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher emits organization audit events to the message bus. The
// whole outbox message crosses so publishers can build their own envelope.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, message OutboxMessage) error
}

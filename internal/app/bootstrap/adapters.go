package bootstrap

import (
	"context"
	"encoding/json"
	"errors"

	identityentities "opencast/contexts/identity-access/identity-service/domain/entities"
	identityerrors "opencast/contexts/identity-access/identity-service/domain/errors"
	identityports "opencast/contexts/identity-access/identity-service/ports"
	orgports "opencast/contexts/identity-access/organization-service/ports"
	"opencast/internal/platform/messaging"
	"opencast/internal/shared/events"
)

// identityDirectory adapts the identity repository to the organization
// service's directory port. Inactive users resolve as absent for email
// lookups so they cannot be added as members.
type identityDirectory struct {
	repo identityports.Repository
}

var _ orgports.IdentityDirectory = identityDirectory{}

func (d identityDirectory) FindUserByEmail(ctx context.Context, email string) (orgports.UserRef, bool, error) {
	user, err := d.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identityerrors.ErrUserNotFound) {
			return orgports.UserRef{}, false, nil
		}
		return orgports.UserRef{}, false, err
	}
	if !user.IsActive {
		return orgports.UserRef{}, false, nil
	}
	return userRef(user), true, nil
}

func (d identityDirectory) GetUser(ctx context.Context, userID string) (orgports.UserRef, bool, error) {
	user, err := d.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, identityerrors.ErrUserNotFound) {
			return orgports.UserRef{}, false, nil
		}
		return orgports.UserRef{}, false, err
	}
	return userRef(user), true, nil
}

func userRef(user identityentities.User) orgports.UserRef {
	return orgports.UserRef{
		UserID:   user.UserID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName(),
		IsActive: user.IsActive,
	}
}

// organizationCounter is the slice of the organization repository the
// identity guard needs.
type organizationCounter interface {
	CountOrganizationsCreatedBy(ctx context.Context, userID string) (int64, error)
}

// organizationGuard adapts the organization repository to the identity
// service's creator-reference check.
type organizationGuard struct {
	repo organizationCounter
}

var _ identityports.OrganizationGuard = organizationGuard{}

func (g organizationGuard) CountOrganizationsCreatedBy(ctx context.Context, userID string) (int64, error) {
	return g.repo.CountOrganizationsCreatedBy(ctx, userID)
}

// envelopePublisher wraps outbox rows in the shared event envelope before
// handing them to the bus.
type envelopePublisher struct {
	bus           *messaging.Bus
	sourceService string
}

var _ orgports.EventPublisher = envelopePublisher{}

func (p envelopePublisher) Publish(ctx context.Context, topic string, message orgports.OutboxMessage) error {
	var payload any
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		payload = string(message.Payload)
	}
	return p.bus.Publish(ctx, topic, events.Envelope{
		EventID:        message.OutboxID,
		EventType:      message.EventType,
		SourceService:  p.sourceService,
		OccurredAtUTC:  message.CreatedAt.UTC(),
		EntityType:     "organization",
		PayloadVersion: 1,
		Payload:        payload,
	})
}

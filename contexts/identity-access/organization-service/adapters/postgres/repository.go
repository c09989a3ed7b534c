package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"opencast/contexts/identity-access/organization-service/domain/entities"
	domainerrors "opencast/contexts/identity-access/organization-service/domain/errors"
	"opencast/contexts/identity-access/organization-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) LookupRole(ctx context.Context, name entities.RoleName) (entities.Role, error) {
	var row roleModel
	err := r.db.WithContext(ctx).
		Where("name = ?", string(name)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Role{}, domainerrors.ErrRoleNotFound
		}
		return entities.Role{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListRoles(ctx context.Context) ([]entities.Role, error) {
	var rows []roleModel
	if err := r.db.WithContext(ctx).Order("rank DESC, name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Role, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// CreateOrganizationWithOwner writes the organization row and the creator's
// owner membership in one transaction: either both land or neither does.
func (r *Repository) CreateOrganizationWithOwner(
	ctx context.Context,
	input ports.CreateOrganizationInput,
) (entities.Organization, entities.Membership, error) {
	now := input.CreatedAt.UTC()
	orgRow := organizationModel{
		OrganizationID: strings.TrimSpace(input.OrganizationID),
		Name:           strings.TrimSpace(input.Name),
		Slug:           strings.ToLower(strings.TrimSpace(input.Slug)),
		Description:    strings.TrimSpace(input.Description),
		CreatedBy:      strings.TrimSpace(input.CreatedBy),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	membershipRow := membershipModel{
		MembershipID:   strings.TrimSpace(input.MembershipID),
		UserID:         orgRow.CreatedBy,
		OrganizationID: orgRow.OrganizationID,
		RoleName:       string(entities.RoleOwner),
		IsActive:       true,
		JoinedAt:       now,
		UpdatedAt:      now,
	}

	var ownerRole roleModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", string(entities.RoleOwner)).First(&ownerRole).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrRoleNotFound
			}
			return err
		}
		if err := tx.Create(&orgRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrSlugTaken
			}
			return err
		}
		if err := tx.Create(&membershipRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrMembershipExists
			}
			return err
		}
		return insertOutboxTx(tx, "organization.created", map[string]any{
			"organization_id": orgRow.OrganizationID,
			"slug":            orgRow.Slug,
			"created_by":      orgRow.CreatedBy,
		}, now)
	})
	if err != nil {
		return entities.Organization{}, entities.Membership{}, err
	}
	return orgRow.toEntity(1), membershipRow.toEntity(ownerRole.toEntity()), nil
}

func (r *Repository) GetOrganization(ctx context.Context, organizationID string) (entities.Organization, error) {
	var row organizationModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", strings.TrimSpace(organizationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Organization{}, domainerrors.ErrOrganizationNotFound
		}
		return entities.Organization{}, err
	}
	count, err := r.membersCount(ctx, row.OrganizationID)
	if err != nil {
		return entities.Organization{}, err
	}
	return row.toEntity(count), nil
}

func (r *Repository) ListOrganizationsForUser(ctx context.Context, userID string) ([]entities.Organization, error) {
	var rows []organizationModel
	err := r.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.organization_id = organizations.organization_id").
		Where("memberships.user_id = ? AND memberships.is_active = ? AND organizations.is_active = ?",
			strings.TrimSpace(userID), true, true).
		Order("organizations.name ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return r.withMemberCounts(ctx, rows)
}

func (r *Repository) ListAllOrganizations(ctx context.Context) ([]entities.Organization, error) {
	var rows []organizationModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.withMemberCounts(ctx, rows)
}

func (r *Repository) UpdateOrganization(
	ctx context.Context,
	organizationID string,
	patch ports.OrganizationPatch,
	now time.Time,
) (entities.Organization, error) {
	updates := map[string]any{"updated_at": now.UTC()}
	if patch.Name != nil {
		updates["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&organizationModel{}).
			Where("organization_id = ?", strings.TrimSpace(organizationID)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrOrganizationNotFound
		}
		return insertOutboxTx(tx, "organization.updated", map[string]any{
			"organization_id": strings.TrimSpace(organizationID),
		}, now.UTC())
	})
	if err != nil {
		return entities.Organization{}, err
	}
	return r.GetOrganization(ctx, organizationID)
}

// DeactivateOrganization retires the organization and explicitly
// deactivates its memberships inside the same transaction.
func (r *Repository) DeactivateOrganization(ctx context.Context, organizationID string, now time.Time) (int, error) {
	timestamp := now.UTC()
	deactivated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row organizationModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("organization_id = ?", strings.TrimSpace(organizationID)).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrOrganizationNotFound
			}
			return err
		}

		if err := tx.Model(&organizationModel{}).
			Where("organization_id = ?", row.OrganizationID).
			Updates(map[string]any{"is_active": false, "updated_at": timestamp}).
			Error; err != nil {
			return err
		}

		result := tx.Model(&membershipModel{}).
			Where("organization_id = ? AND is_active = ?", row.OrganizationID, true).
			Updates(map[string]any{"is_active": false, "updated_at": timestamp})
		if result.Error != nil {
			return result.Error
		}
		deactivated = int(result.RowsAffected)

		return insertOutboxTx(tx, "organization.deactivated", map[string]any{
			"organization_id":         row.OrganizationID,
			"memberships_deactivated": deactivated,
		}, timestamp)
	})
	if err != nil {
		return 0, err
	}
	return deactivated, nil
}

func (r *Repository) CountOrganizationsCreatedBy(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&organizationModel{}).
		Where("created_by = ?", strings.TrimSpace(userID)).
		Count(&count).
		Error
	return count, err
}

func (r *Repository) ActiveMembership(
	ctx context.Context,
	userID string,
	organizationID string,
) (entities.Membership, error) {
	var row membershipModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ? AND is_active = ?",
			strings.TrimSpace(userID), strings.TrimSpace(organizationID), true).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Membership{}, domainerrors.ErrMembershipNotFound
		}
		return entities.Membership{}, err
	}
	return r.membershipWithRole(ctx, row)
}

func (r *Repository) GetMembership(ctx context.Context, membershipID string) (entities.Membership, error) {
	var row membershipModel
	err := r.db.WithContext(ctx).
		Where("membership_id = ?", strings.TrimSpace(membershipID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Membership{}, domainerrors.ErrMembershipNotFound
		}
		return entities.Membership{}, err
	}
	return r.membershipWithRole(ctx, row)
}

// CreateMembership relies on the (user_id, organization_id) unique index for
// duplicate detection so concurrent creations resolve to exactly one winner.
func (r *Repository) CreateMembership(
	ctx context.Context,
	input ports.CreateMembershipInput,
) (entities.Membership, error) {
	now := input.JoinedAt.UTC()
	row := membershipModel{
		MembershipID:   strings.TrimSpace(input.MembershipID),
		UserID:         strings.TrimSpace(input.UserID),
		OrganizationID: strings.TrimSpace(input.OrganizationID),
		RoleName:       string(input.RoleName),
		IsActive:       true,
		JoinedAt:       now,
		UpdatedAt:      now,
	}

	var role roleModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", row.RoleName).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrRoleNotFound
			}
			return err
		}
		var org organizationModel
		if err := tx.Where("organization_id = ?", row.OrganizationID).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrOrganizationNotFound
			}
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrMembershipExists
			}
			return err
		}
		return insertOutboxTx(tx, "membership.created", map[string]any{
			"membership_id":   row.MembershipID,
			"organization_id": row.OrganizationID,
			"user_id":         row.UserID,
			"role":            row.RoleName,
		}, now)
	})
	if err != nil {
		return entities.Membership{}, err
	}
	return row.toEntity(role.toEntity()), nil
}

// DeactivateMembership evaluates the last-owner invariant and the write in
// one transaction. The organization's owner memberships are locked first so
// two concurrent removals of the final two owners serialize, and the loser
// sees the updated count.
func (r *Repository) DeactivateMembership(
	ctx context.Context,
	organizationID string,
	userID string,
	now time.Time,
) (entities.Membership, error) {
	timestamp := now.UTC()
	var row membershipModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND organization_id = ?",
				strings.TrimSpace(userID), strings.TrimSpace(organizationID)).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrMembershipNotFound
			}
			return err
		}
		if !row.IsActive {
			// Already revoked; deactivation is idempotent.
			return nil
		}

		if row.RoleName == string(entities.RoleOwner) {
			otherOwners, err := lockActiveOwnersTx(tx, row.OrganizationID, row.MembershipID)
			if err != nil {
				return err
			}
			if otherOwners == 0 {
				return domainerrors.ErrLastOwner
			}
		}

		if err := tx.Model(&membershipModel{}).
			Where("membership_id = ?", row.MembershipID).
			Updates(map[string]any{"is_active": false, "updated_at": timestamp}).
			Error; err != nil {
			return err
		}
		row.IsActive = false
		row.UpdatedAt = timestamp
		return insertOutboxTx(tx, "membership.deactivated", map[string]any{
			"membership_id":   row.MembershipID,
			"organization_id": row.OrganizationID,
			"user_id":         row.UserID,
		}, timestamp)
	})
	if err != nil {
		return entities.Membership{}, err
	}
	return r.membershipWithRole(ctx, row)
}

// UpdateMembershipRole applies the same owner protection when the change
// would demote the organization's only remaining active owner.
func (r *Repository) UpdateMembershipRole(
	ctx context.Context,
	membershipID string,
	role entities.RoleName,
	now time.Time,
) (entities.Membership, error) {
	timestamp := now.UTC()
	var row membershipModel
	var newRole roleModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", string(role)).First(&newRole).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrRoleNotFound
			}
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("membership_id = ?", strings.TrimSpace(membershipID)).
			First(&row).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrMembershipNotFound
			}
			return err
		}

		if row.IsActive && row.RoleName == string(entities.RoleOwner) && role != entities.RoleOwner {
			otherOwners, err := lockActiveOwnersTx(tx, row.OrganizationID, row.MembershipID)
			if err != nil {
				return err
			}
			if otherOwners == 0 {
				return domainerrors.ErrLastOwner
			}
		}

		if err := tx.Model(&membershipModel{}).
			Where("membership_id = ?", row.MembershipID).
			Updates(map[string]any{"role_name": string(role), "updated_at": timestamp}).
			Error; err != nil {
			return err
		}
		row.RoleName = string(role)
		row.UpdatedAt = timestamp
		return insertOutboxTx(tx, "membership.role_updated", map[string]any{
			"membership_id":   row.MembershipID,
			"organization_id": row.OrganizationID,
			"user_id":         row.UserID,
			"role":            row.RoleName,
		}, timestamp)
	})
	if err != nil {
		return entities.Membership{}, err
	}
	return row.toEntity(newRole.toEntity()), nil
}

func (r *Repository) ListActiveMemberships(ctx context.Context, organizationID string) ([]entities.Membership, error) {
	var rows []membershipModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", strings.TrimSpace(organizationID), true).
		Order("joined_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return r.membershipsWithRoles(ctx, rows)
}

func (r *Repository) ListActiveMembershipsForUser(ctx context.Context, userID string) ([]entities.Membership, error) {
	var rows []membershipModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", strings.TrimSpace(userID), true).
		Order("joined_at ASC").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	return r.membershipsWithRoles(ctx, rows)
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:  row.OutboxID,
			EventType: row.EventType,
			Payload:   append([]byte(nil), row.Payload...),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	timestamp := publishedAt.UTC()
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{"status": outboxStatusPublished, "published_at": timestamp}).
		Error
}

func (r *Repository) membersCount(ctx context.Context, organizationID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&membershipModel{}).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Count(&count).
		Error
	return int(count), err
}

func (r *Repository) withMemberCounts(ctx context.Context, rows []organizationModel) ([]entities.Organization, error) {
	items := make([]entities.Organization, 0, len(rows))
	for _, row := range rows {
		count, err := r.membersCount(ctx, row.OrganizationID)
		if err != nil {
			return nil, err
		}
		items = append(items, row.toEntity(count))
	}
	return items, nil
}

func (r *Repository) membershipWithRole(ctx context.Context, row membershipModel) (entities.Membership, error) {
	role, err := r.LookupRole(ctx, entities.RoleName(row.RoleName))
	if err != nil {
		return entities.Membership{}, err
	}
	return row.toEntity(role), nil
}

func (r *Repository) membershipsWithRoles(ctx context.Context, rows []membershipModel) ([]entities.Membership, error) {
	roles, err := r.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]entities.Role, len(roles))
	for _, role := range roles {
		byName[string(role.Name)] = role
	}
	items := make([]entities.Membership, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(byName[row.RoleName]))
	}
	return items, nil
}

// lockActiveOwnersTx locks the organization's other active owner rows and
// returns how many there are. Row locks keep the count stable until the
// surrounding transaction commits.
func lockActiveOwnersTx(tx *gorm.DB, organizationID string, excludeMembershipID string) (int, error) {
	var owners []membershipModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("organization_id = ? AND role_name = ? AND is_active = ? AND membership_id <> ?",
			organizationID, string(entities.RoleOwner), true, excludeMembershipID).
		Find(&owners).
		Error
	if err != nil {
		return 0, err
	}
	return len(owners), nil
}

func insertOutboxTx(tx *gorm.DB, eventType string, payload map[string]any, occurredAt time.Time) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:  uuid.NewString(),
		EventType: eventType,
		Payload:   encoded,
		Status:    outboxStatusPending,
		CreatedAt: occurredAt,
	}
	return tx.Create(&row).Error
}

func seedRoles(db *gorm.DB) error {
	now := time.Now().UTC()
	descriptions := map[entities.RoleName]string{
		entities.RoleOwner:  "Full control including member administration",
		entities.RoleAdmin:  "Organization and member administration",
		entities.RoleMember: "Standard member access",
		entities.RoleViewer: "Read-only access",
	}
	for _, name := range []entities.RoleName{entities.RoleOwner, entities.RoleAdmin, entities.RoleMember, entities.RoleViewer} {
		row := roleModel{
			RoleID:      uuid.NewString(),
			Name:        string(name),
			Description: descriptions[name],
			Rank:        entities.RankOf(name),
			Permissions: []byte(`{}`),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

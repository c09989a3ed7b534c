package postgresadapter

import (
	"encoding/json"
	"time"

	"opencast/contexts/identity-access/organization-service/domain/entities"

	"gorm.io/gorm"
)

type roleModel struct {
	RoleID      string    `gorm:"column:role_id;primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex"`
	Description string    `gorm:"column:description"`
	Rank        int       `gorm:"column:rank"`
	Permissions []byte    `gorm:"column:permissions;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (roleModel) TableName() string { return "roles" }

type organizationModel struct {
	OrganizationID string    `gorm:"column:organization_id;primaryKey"`
	Name           string    `gorm:"column:name"`
	Slug           string    `gorm:"column:slug;uniqueIndex"`
	Description    string    `gorm:"column:description"`
	CreatedBy      string    `gorm:"column:created_by;index"`
	IsActive       bool      `gorm:"column:is_active"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (organizationModel) TableName() string { return "organizations" }

type membershipModel struct {
	MembershipID   string    `gorm:"column:membership_id;primaryKey"`
	UserID         string    `gorm:"column:user_id;uniqueIndex:idx_memberships_user_org"`
	OrganizationID string    `gorm:"column:organization_id;uniqueIndex:idx_memberships_user_org;index"`
	RoleName       string    `gorm:"column:role_name"`
	IsActive       bool      `gorm:"column:is_active"`
	JoinedAt       time.Time `gorm:"column:joined_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (membershipModel) TableName() string { return "memberships" }

type outboxModel struct {
	OutboxID    string     `gorm:"column:outbox_id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Payload     []byte     `gorm:"column:payload;type:jsonb"`
	Status      string     `gorm:"column:status;index"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string { return "organization_outbox" }

func (m roleModel) toEntity() entities.Role {
	permissions := m.Permissions
	if len(permissions) == 0 {
		permissions = []byte(`{}`)
	}
	return entities.Role{
		RoleID:      m.RoleID,
		Name:        entities.RoleName(m.Name),
		Description: m.Description,
		Rank:        m.Rank,
		Permissions: json.RawMessage(permissions),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func (m organizationModel) toEntity(membersCount int) entities.Organization {
	return entities.Organization{
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Slug:           m.Slug,
		Description:    m.Description,
		CreatedBy:      m.CreatedBy,
		IsActive:       m.IsActive,
		MembersCount:   membersCount,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func (m membershipModel) toEntity(role entities.Role) entities.Membership {
	return entities.Membership{
		MembershipID:   m.MembershipID,
		UserID:         m.UserID,
		OrganizationID: m.OrganizationID,
		Role:           role,
		IsActive:       m.IsActive,
		JoinedAt:       m.JoinedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

// Migrate creates the context's tables and seeds the fixed role catalog.
// Seeding is idempotent so every process can run it at startup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&roleModel{}, &organizationModel{}, &membershipModel{}, &outboxModel{}); err != nil {
		return err
	}
	return seedRoles(db)
}

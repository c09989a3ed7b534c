package postgresadapter

import (
	"time"

	"opencast/contexts/identity-access/identity-service/domain/entities"

	"gorm.io/gorm"
)

type userModel struct {
	UserID       string    `gorm:"column:user_id;primaryKey"`
	Email        string    `gorm:"column:email;uniqueIndex"`
	Username     string    `gorm:"column:username;index"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	PasswordHash string    `gorm:"column:password_hash"`
	IsActive     bool      `gorm:"column:is_active"`
	IsSuperuser  bool      `gorm:"column:is_superuser"`
	DateJoined   time.Time `gorm:"column:date_joined"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) toEntity() entities.User {
	return entities.User{
		UserID:       m.UserID,
		Email:        m.Email,
		Username:     m.Username,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		PasswordHash: m.PasswordHash,
		IsActive:     m.IsActive,
		IsSuperuser:  m.IsSuperuser,
		DateJoined:   m.DateJoined.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

// Migrate creates the context's tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&userModel{})
}

package entities

import (
	"encoding/json"
	"time"
)

// RoleName is the closed set of authorization levels. New roles are not
// created at runtime; the catalog is seeded once per store.
type RoleName string

const (
	RoleOwner  RoleName = "owner"
	RoleAdmin  RoleName = "admin"
	RoleMember RoleName = "member"
	RoleViewer RoleName = "viewer"
)

// Rank values are fixed and totally ordered. Authorization compares ranks,
// so a role's power is its number, not its spelling.
const (
	RankOwner  = 100
	RankAdmin  = 80
	RankMember = 50
	RankViewer = 10
)

// Role is a global permission bundle shared by all organizations.
type Role struct {
	RoleID      string          `json:"role_id"`
	Name        RoleName        `json:"name"`
	Description string          `json:"description"`
	Rank        int             `json:"rank"`
	Permissions json.RawMessage `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsValidRoleName reports whether name belongs to the seeded catalog.
func IsValidRoleName(name RoleName) bool {
	switch name {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}

// RankOf returns the fixed rank for a catalog role name, or 0 for unknown
// names so that unknown roles never out-rank a seeded one.
func RankOf(name RoleName) int {
	switch name {
	case RoleOwner:
		return RankOwner
	case RoleAdmin:
		return RankAdmin
	case RoleMember:
		return RankMember
	case RoleViewer:
		return RankViewer
	default:
		return 0
	}
}
